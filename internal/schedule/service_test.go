package schedule

import (
	"context"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/dailynote"
	"github.com/starford/dayplanner/internal/index"
	"github.com/starford/dayplanner/internal/planner"
	"github.com/starford/dayplanner/internal/storage"
	"github.com/starford/dayplanner/internal/testutil"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

var day1 = time.Date(2024, 5, 14, 0, 0, 0, 0, time.Local)

const dailyNote = `# Tuesday

## Day planner

- [ ] 11:00 - 12:00 Review
- [ ] 09:00 Standup
	- prepare notes
	- [ ] 09:30 - 09:45 Sync with Ann
- [ ] 27:00 Broken
- [ ] untimed
`

const projectNote = `# Project
- [ ] 14:00 - 15:00 Ship release ⏳ 2024-05-15
- [ ] 16:00 Someday
`

type fixture struct {
	store *storage.FS
	db    *index.DB
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteNotes(t, store, db, map[string]string{
		"2024-05-14.md":    dailyNote,
		"projects/ship.md": projectNote,
	})
	svc := NewService(store, db, dailynote.NewResolver("", ""), Options{Logger: testutil.Logger()})
	return &fixture{store: store, db: db, svc: svc}
}

func texts(items []planner.PlanItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.FirstLineText
	}
	return out
}

func TestDays_GroupsDailyAndScheduled(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Days(context.Background(), timeutil.Days(day1, 3))
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-05-14", "2024-05-15", "2024-05-16"}, res.Order)
	require.Len(t, res.Days, 3)

	first := res.Days["2024-05-14"].WithTime
	assert.Equal(t, []string{"Standup", "Sync with Ann", "Review"}, texts(first))
	assert.Equal(t, "Standup\n\t- prepare notes", first[0].Text)
	assert.Equal(t, 30, first[0].DurationMinutes)

	second := res.Days["2024-05-15"].WithTime
	assert.Equal(t, []string{"Ship release"}, texts(second))
	assert.Equal(t, "projects/ship.md", second[0].Location.Path)

	assert.True(t, res.Days["2024-05-16"].IsEmpty())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 8, res.Errors[0].Location.Line)
}

func TestDays_StableWithinGenerationAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Day(ctx, day1)
	require.NoError(t, err)
	b, err := f.svc.Day(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, a.WithTime, b.WithTime, "cached derivation keeps ids")

	f.svc.Invalidate()
	c, err := f.svc.Day(ctx, day1)
	require.NoError(t, err)
	require.Len(t, c.WithTime, len(a.WithTime))
	for i := range a.WithTime {
		assert.NotEqual(t, a.WithTime[i].ID, c.WithTime[i].ID, "fresh pass, fresh ids")
		assert.Equal(t, a.WithTime[i].StartMinutes, c.WithTime[i].StartMinutes)
		assert.Equal(t, a.WithTime[i].DurationMinutes, c.WithTime[i].DurationMinutes)
		assert.Equal(t, a.WithTime[i].Text, c.WithTime[i].Text)
	}
}

func TestItem_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Item(context.Background(), day1, "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func itemNamed(t *testing.T, svc *Service, day time.Time, name string) planner.PlanItem {
	t.Helper()
	bucket, err := svc.Day(context.Background(), day)
	require.NoError(t, err)
	for _, it := range bucket.WithTime {
		if it.FirstLineText == name {
			return it
		}
	}
	t.Fatalf("no item %q", name)
	return planner.PlanItem{}
}

func TestApply_MoveRewritesLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	review := itemNamed(t, f.svc, day1, "Review")
	start := 13 * 60
	err := f.svc.Apply(ctx, timeline.UpdateRequest{Item: review.WithStartMinutes(start), StartMinutes: &start})
	require.NoError(t, err)

	data, err := f.store.Read("2024-05-14.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "- [ ] 13:00 - 14:00 Review\n")
	assert.NotContains(t, string(data), "11:00 - 12:00 Review")

	moved := itemNamed(t, f.svc, day1, "Review")
	assert.Equal(t, start, moved.StartMinutes, "index and cache refreshed")
}

func TestApply_StartOnlyItemStaysStartOnly(t *testing.T) {
	f := newFixture(t)
	standup := itemNamed(t, f.svc, day1, "Standup")
	start := 8 * 60
	require.NoError(t, f.svc.Apply(context.Background(),
		timeline.UpdateRequest{Item: standup.WithStartMinutes(start), StartMinutes: &start}))

	data, _ := f.store.Read("2024-05-14.md")
	assert.Contains(t, string(data), "- [ ] 08:00 Standup\n")
}

func TestApply_ResizeWritesEnd(t *testing.T) {
	f := newFixture(t)
	standup := itemNamed(t, f.svc, day1, "Standup")
	end := 10 * 60
	require.NoError(t, f.svc.Apply(context.Background(),
		timeline.UpdateRequest{Item: standup.WithEndMinutes(end), EndMinutes: &end}))

	data, _ := f.store.Read("2024-05-14.md")
	assert.Contains(t, string(data), "- [ ] 09:00 - 10:00 Standup\n")
	assert.Contains(t, string(data), "\t- prepare notes\n", "children untouched")
}

func TestApply_WritesRequestedWallClockAcrossDSTGap(t *testing.T) {
	f := newFixture(t)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	review := itemNamed(t, f.svc, day1, "Review")
	review.StartTime = time.Date(2024, 3, 10, 11, 0, 0, 0, ny)
	start := 2*60 + 30 // clocks jump from 02:00 to 03:00
	moved := review.WithStartMinutes(start)
	assert.NotEqual(t, start, moved.StartMinutes)

	require.NoError(t, f.svc.Apply(context.Background(),
		timeline.UpdateRequest{Item: moved, StartMinutes: &start}))

	data, _ := f.store.Read("2024-05-14.md")
	assert.Contains(t, string(data), "- [ ] 02:30 - 03:30 Review\n")
}

func TestApply_StaleWhenLineChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	review := itemNamed(t, f.svc, day1, "Review")

	edited := strings.Replace(dailyNote, "11:00 - 12:00 Review", "11:00 - 12:00 Retro", 1)
	require.NoError(t, f.store.Write("2024-05-14.md", []byte(edited)))

	start := 600
	err := f.svc.Apply(ctx, timeline.UpdateRequest{Item: review.WithStartMinutes(start), StartMinutes: &start})
	assert.ErrorIs(t, err, apperr.ErrStale)

	data, _ := f.store.Read("2024-05-14.md")
	assert.Equal(t, edited, string(data), "nothing written")

	review.Location.Line = 999
	err = f.svc.Apply(ctx, timeline.UpdateRequest{Item: review, StartMinutes: &start})
	assert.ErrorIs(t, err, apperr.ErrStale)

	review.Location.Path = "gone.md"
	err = f.svc.Apply(ctx, timeline.UpdateRequest{Item: review, StartMinutes: &start})
	assert.ErrorIs(t, err, apperr.ErrStale)
}

func TestInsertHeading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	settings := timeline.DefaultSettings()

	path, err := f.svc.InsertHeading(ctx, day1.AddDate(0, 0, 5), settings)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-19.md", path)
	data, _ := f.store.Read(path)
	assert.Equal(t, "# Day planner\n\n- \n", string(data))

	_, err = f.svc.InsertHeading(ctx, day1.AddDate(0, 0, 5), settings)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	require.NoError(t, f.store.Write("2024-05-20.md", []byte("notes")))
	_, err = f.svc.InsertHeading(ctx, day1.AddDate(0, 0, 6), settings)
	require.NoError(t, err)
	data, _ = f.store.Read("2024-05-20.md")
	assert.Equal(t, "notes\n\n# Day planner\n\n- \n", string(data))
}

func TestNoteAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note, err := f.svc.Note(ctx, "projects/ship.md")
	require.NoError(t, err)
	assert.Equal(t, "Project", note.Title)
	assert.Equal(t, projectNote, note.Content)

	_, err = f.svc.Note(ctx, "missing.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	hits, err := f.svc.Search(ctx, "ship", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "projects/ship.md", hits[0].Path)

	_, err = f.svc.Search(ctx, "  ", 10)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
