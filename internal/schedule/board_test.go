package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/sse"
	"github.com/starford/dayplanner/internal/testutil"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func newBoard(t *testing.T) (*fixture, *Board, *recorder) {
	t.Helper()
	f := newFixture(t)
	rec := &recorder{}
	return f, NewBoard(f.svc, timeline.DefaultSettings(), rec, testutil.Logger()), rec
}

func TestBoard_Layout(t *testing.T) {
	_, b, _ := newBoard(t)
	b.Tick(day1.Add(9*time.Hour + 10*time.Minute))

	view, err := b.Layout(context.Background(), timeutil.Days(day1, 2))
	require.NoError(t, err)
	require.Len(t, view.Days, 2)
	assert.Len(t, view.Errors, 1)

	items := view.Days[0].Items
	require.Len(t, items, 3)

	standup := items[0]
	assert.Equal(t, "Standup", standup.Item.FirstLineText)
	assert.Equal(t, 1080.0, standup.Offset) // 09:00 at 2 px/min
	assert.Equal(t, 60.0, standup.Height)
	assert.Equal(t, timeline.Present, standup.Relation)
	assert.Equal(t, "idle", standup.Phase)

	assert.Equal(t, timeline.Future, items[2].Relation)
	assert.Empty(t, view.Days[1].Items[0].GestureID)
}

func TestBoard_MoveGestureWritesNote(t *testing.T) {
	f, b, rec := newBoard(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")

	st, err := b.Start(ctx, day1, review.ID, GestureMove, 1320)
	require.NoError(t, err)
	assert.Equal(t, "moving", st.Layout.Phase)
	assert.Equal(t, 1, b.Active())

	st, err = b.Cursor(st.ID, 1320+241)
	require.NoError(t, err)
	assert.Equal(t, 1561.0, st.Layout.Offset)
	assert.Equal(t, 1, rec.count(sse.EventGestureUpdated))

	view, err := b.Layout(ctx, []time.Time{day1})
	require.NoError(t, err)
	live := view.Days[0].Items[2]
	assert.Equal(t, st.ID, live.GestureID)
	assert.Equal(t, 1561.0, live.Offset)

	req, err := b.Confirm(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, req.StartMinutes)
	assert.Equal(t, 13*60, *req.StartMinutes)
	assert.Nil(t, req.EndMinutes)
	assert.Equal(t, 0, b.Active())
	assert.Equal(t, 1, rec.count(sse.EventGestureCommitted))

	data, err := f.store.Read("2024-05-14.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "- [ ] 13:00 - 14:00 Review\n")

	_, err = b.Gesture(st.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBoard_MoveItemCrossingMidnight(t *testing.T) {
	f, b, _ := newBoard(t)
	ctx := context.Background()
	day3 := day1.AddDate(0, 0, 2)
	testutil.WriteNotes(t, f.store, f.db, map[string]string{
		"2024-05-16.md": "- [ ] 23:00 - 01:00 Night shift\n",
	})
	f.svc.Invalidate()

	night := itemNamed(t, f.svc, day3, "Night shift")
	assert.Equal(t, -22*60, night.DurationMinutes)

	st, err := b.Start(ctx, day3, night.ID, GestureMove, 2760)
	require.NoError(t, err)
	_, err = b.Cursor(st.ID, 2760-120)
	require.NoError(t, err)

	req, err := b.Confirm(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, req.StartMinutes)
	assert.Equal(t, 22*60, *req.StartMinutes)

	data, err := f.store.Read("2024-05-16.md")
	require.NoError(t, err)
	assert.Equal(t, "- [ ] 22:00 - 00:00 Night shift\n", string(data))
}

func TestBoard_GestureSurvivesRederivation(t *testing.T) {
	f, b, _ := newBoard(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")

	st, err := b.Start(ctx, day1, review.ID, GestureMove, 1320)
	require.NoError(t, err)
	_, err = b.Cursor(st.ID, 1320+100)
	require.NoError(t, err)

	f.svc.Invalidate()
	fresh := itemNamed(t, f.svc, day1, "Review")
	require.NotEqual(t, review.ID, fresh.ID)

	_, err = b.Start(ctx, day1, fresh.ID, GestureResize, 0)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 1, b.Active())

	view, err := b.Layout(ctx, []time.Time{day1})
	require.NoError(t, err)
	live := view.Days[0].Items[2]
	assert.Equal(t, st.ID, live.GestureID)
	assert.Equal(t, fresh.ID, live.Item.ID)
	assert.Equal(t, "moving", live.Phase)
	assert.Equal(t, 1420.0, live.Offset)

	_, err = b.Confirm(ctx, st.ID)
	require.NoError(t, err)
	data, _ := f.store.Read("2024-05-14.md")
	assert.Contains(t, string(data), "- [ ] 11:50 - 12:50 Review\n")
}

func TestBoard_ResizeGestureWritesEnd(t *testing.T) {
	f, b, _ := newBoard(t)
	ctx := context.Background()
	standup := itemNamed(t, f.svc, day1, "Standup")

	st, err := b.Start(ctx, day1, standup.ID, GestureResize, 1140)
	require.NoError(t, err)
	st, err = b.Cursor(st.ID, 1080+150)
	require.NoError(t, err)
	assert.Equal(t, 150.0, st.Layout.Height)

	req, err := b.Confirm(ctx, st.ID)
	require.NoError(t, err)
	require.NotNil(t, req.EndMinutes)
	assert.Equal(t, 615, *req.EndMinutes)

	data, _ := f.store.Read("2024-05-14.md")
	assert.Contains(t, string(data), "- [ ] 09:00 - 10:15 Standup\n")
}

func TestBoard_CancelLeavesNoteUntouched(t *testing.T) {
	f, b, rec := newBoard(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")
	before, _ := f.store.Read("2024-05-14.md")

	st, err := b.Start(ctx, day1, review.ID, GestureMove, 0)
	require.NoError(t, err)
	_, err = b.Cursor(st.ID, 500)
	require.NoError(t, err)
	require.NoError(t, b.Cancel(st.ID))

	after, _ := f.store.Read("2024-05-14.md")
	assert.Equal(t, before, after)
	assert.Equal(t, 0, b.Active())
	assert.Zero(t, rec.count(sse.EventGestureCommitted))

	assert.ErrorIs(t, b.Cancel(st.ID), apperr.ErrNotFound)
}

func TestBoard_StartErrors(t *testing.T) {
	f, b, _ := newBoard(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")

	_, err := b.Start(ctx, day1, review.ID, "drag", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = b.Start(ctx, day1, "missing", GestureMove, 0)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = b.Start(ctx, day1, review.ID, GestureMove, 0)
	require.NoError(t, err)
	_, err = b.Start(ctx, day1, review.ID, GestureResize, 0)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = b.Cursor("missing", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = b.Confirm(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBoard_ConfirmStaleFinishesGesture(t *testing.T) {
	f, b, rec := newBoard(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")

	st, err := b.Start(ctx, day1, review.ID, GestureMove, 0)
	require.NoError(t, err)
	require.NoError(t, f.store.Write("2024-05-14.md", []byte("# emptied\n")))

	_, err = b.Confirm(ctx, st.ID)
	assert.ErrorIs(t, err, apperr.ErrStale)
	assert.Equal(t, 0, b.Active())
	assert.Zero(t, rec.count(sse.EventGestureCommitted))
}

func TestBoard_SettingsFollowActiveGesture(t *testing.T) {
	f, b, rec := newBoard(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")

	st, err := b.Start(ctx, day1, review.ID, GestureMove, 0)
	require.NoError(t, err)
	assert.Equal(t, 1320.0, st.Layout.Offset)

	s := b.Settings()
	s.ZoomLevel = 1
	require.NoError(t, b.SetSettings(s))
	assert.Equal(t, 1, rec.count(sse.EventSettingsUpdated))

	st, err = b.Gesture(st.ID)
	require.NoError(t, err)
	assert.Equal(t, 660.0, st.Layout.Offset)

	s.ZoomLevel = 99
	assert.ErrorIs(t, b.SetSettings(s), apperr.ErrInvalidInput)
	assert.Equal(t, 1, b.Settings().ZoomLevel)
}

func TestBoard_TickPublishesOncePerMinute(t *testing.T) {
	_, b, rec := newBoard(t)
	base := day1.Add(10 * time.Hour)

	b.Tick(base)
	b.Tick(base.Add(20 * time.Second))
	b.Tick(base.Add(time.Minute))

	assert.Equal(t, 2, rec.count(sse.EventClockUpdated))
	assert.Equal(t, base.Add(time.Minute), b.Now())
}
