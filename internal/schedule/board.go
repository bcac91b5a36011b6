package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/planner"
	"github.com/starford/dayplanner/internal/sse"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

// GestureKind selects what a gesture changes.
type GestureKind string

// Gesture kinds.
const (
	GestureMove   GestureKind = "move"
	GestureResize GestureKind = "resize"
)

// Valid reports whether k is a known kind.
func (k GestureKind) Valid() bool {
	return k == GestureMove || k == GestureResize
}

// Publisher receives board events. *sse.Broker satisfies it.
type Publisher interface {
	Publish(sse.Event)
}

// ItemLayout is the rendered geometry of one plan item.
type ItemLayout struct {
	Item      planner.PlanItem  `json:"item"`
	Offset    float64           `json:"offset"`
	Height    float64           `json:"height"`
	Relation  timeline.Relation `json:"relation"`
	Phase     string            `json:"phase"`
	GestureID string            `json:"gesture_id,omitempty"`
}

// DayLayout is the rendered geometry of one visible day.
type DayLayout struct {
	Day   string       `json:"day"`
	Items []ItemLayout `json:"items"`
}

// View is the rendered geometry of a set of visible days.
type View struct {
	Days   []DayLayout           `json:"days"`
	Errors []*planner.ParseError `json:"errors"`
}

// GestureState describes an in-flight gesture.
type GestureState struct {
	ID     string      `json:"id"`
	Kind   GestureKind `json:"kind"`
	Day    string      `json:"day"`
	Cursor float64     `json:"cursor"`
	Layout ItemLayout  `json:"layout"`
}

type gesture struct {
	id      string
	kind    GestureKind
	day     string
	cursor  *timeline.Signal[float64]
	task    *timeline.Task
	pending *timeline.UpdateRequest
}

// Board owns the live settings and clock signals and one timeline.Task per
// in-flight gesture. All methods are safe for concurrent use; signal
// delivery happens under the board lock.
type Board struct {
	svc    *Service
	pub    Publisher
	logger *slog.Logger

	mu       sync.Mutex
	settings *timeline.Signal[timeline.Settings]
	clock    *timeline.Signal[time.Time]
	gestures map[string]*gesture
	lastTick string
}

// NewBoard creates a board. pub may be nil.
func NewBoard(svc *Service, settings timeline.Settings, pub Publisher, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		svc:      svc,
		pub:      pub,
		logger:   logger,
		settings: timeline.NewSignal(settings),
		clock:    timeline.NewSignal(time.Now()),
		gestures: make(map[string]*gesture),
	}
}

func (b *Board) publish(eventType string, data any) {
	if b.pub != nil {
		b.pub.Publish(sse.Event{Type: eventType, Data: data})
	}
}

// Settings returns the current settings.
func (b *Board) Settings() timeline.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings.Get()
}

// SetSettings validates and applies new settings. Active gestures follow
// the new zoom and start hour immediately.
func (b *Board) SetSettings(s timeline.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	b.mu.Lock()
	b.settings.Set(s)
	b.mu.Unlock()

	b.logger.Info("board: settings updated",
		slog.Int("zoom_level", s.ZoomLevel),
		slog.Int("start_hour", s.StartHour))
	b.publish(sse.EventSettingsUpdated, s)
	return nil
}

// Now returns the board's notion of the current time.
func (b *Board) Now() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock.Get()
}

// Tick advances the clock. A clock.updated event is published once per
// minute.
func (b *Board) Tick(now time.Time) {
	b.mu.Lock()
	b.clock.Set(now)
	minute := now.Format("2006-01-02T15:04")
	changed := minute != b.lastTick
	b.lastTick = minute
	b.mu.Unlock()

	if changed {
		b.publish(sse.EventClockUpdated, map[string]any{"now": now})
	}
}

// Layout derives the geometry of every item on days. Items under an active
// gesture report the gesture's live values. Gestures are matched by source
// location since ids change whenever the plan is derived again.
func (b *Board) Layout(ctx context.Context, days []time.Time) (*View, error) {
	res, err := b.svc.Days(ctx, days)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	type slot struct {
		day string
		loc models.Location
	}
	active := make(map[slot]*gesture, len(b.gestures))
	for _, g := range b.gestures {
		active[slot{g.day, g.task.Item().Location}] = g
	}

	view := &View{Days: make([]DayLayout, 0, len(res.Order)), Errors: res.Errors}
	for _, key := range res.Order {
		bucket := res.Days[key]
		dl := DayLayout{Day: key, Items: make([]ItemLayout, 0, len(bucket.WithTime))}
		for _, item := range bucket.WithTime {
			if g, ok := active[slot{key, item.Location}]; ok {
				if g.task.Item().ID != item.ID {
					g.task.SetItem(item)
				}
				dl.Items = append(dl.Items, layoutOf(g.task, g.id))
				continue
			}
			task := timeline.NewTask(item, b.props(timeline.NewSignal(0.0), nil))
			dl.Items = append(dl.Items, layoutOf(task, ""))
			task.Close()
		}
		view.Days = append(view.Days, dl)
	}
	return view, nil
}

func (b *Board) props(cursor *timeline.Signal[float64], onUpdate func(timeline.UpdateRequest)) timeline.Props {
	return timeline.Props{
		Settings:      b.settings,
		CurrentTime:   b.clock,
		CursorOffsetY: cursor,
		OnUpdate:      onUpdate,
	}
}

func layoutOf(t *timeline.Task, gestureID string) ItemLayout {
	return ItemLayout{
		Item:      t.Item(),
		Offset:    t.Offset(),
		Height:    t.Height(),
		Relation:  t.RelationToNow(),
		Phase:     t.Phase().String(),
		GestureID: gestureID,
	}
}

func (g *gesture) state() GestureState {
	return GestureState{
		ID:     g.id,
		Kind:   g.kind,
		Day:    g.day,
		Cursor: g.cursor.Get(),
		Layout: layoutOf(g.task, g.id),
	}
}

// Start begins a gesture on the item of day identified by itemID, with the
// pointer at cursorY. Only one gesture may target a source line at a time.
func (b *Board) Start(ctx context.Context, day time.Time, itemID string, kind GestureKind, cursorY float64) (GestureState, error) {
	if !kind.Valid() {
		return GestureState{}, fmt.Errorf("board: gesture kind %q: %w", kind, apperr.ErrInvalidInput)
	}
	item, err := b.svc.Item(ctx, day, itemID)
	if err != nil {
		return GestureState{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, g := range b.gestures {
		if g.task.Item().Location == item.Location {
			return GestureState{}, fmt.Errorf("board: item %s already has gesture %s: %w", itemID, g.id, apperr.ErrConflict)
		}
	}

	g := &gesture{
		id:     uuid.NewString(),
		kind:   kind,
		day:    timeutil.DayKey(day),
		cursor: timeline.NewSignal(cursorY),
	}
	g.task = timeline.NewTask(item, b.props(g.cursor, func(req timeline.UpdateRequest) {
		g.pending = &req
	}))
	if kind == GestureMove {
		g.task.StartMove()
	} else {
		g.task.StartResize()
	}
	g.task.Subscribe(func() {
		b.publish(sse.EventGestureUpdated, g.state())
	})
	b.gestures[g.id] = g

	b.logger.Debug("board: gesture started",
		slog.String("gesture", g.id),
		slog.String("kind", string(kind)),
		slog.String("item", itemID))
	return g.state(), nil
}

func (b *Board) lookup(id string) (*gesture, error) {
	g, ok := b.gestures[id]
	if !ok {
		return nil, fmt.Errorf("board: gesture %s: %w", id, apperr.ErrNotFound)
	}
	return g, nil
}

// Gesture returns the state of an in-flight gesture.
func (b *Board) Gesture(id string) (GestureState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, err := b.lookup(id)
	if err != nil {
		return GestureState{}, err
	}
	return g.state(), nil
}

// Cursor moves the pointer of a gesture.
func (b *Board) Cursor(id string, y float64) (GestureState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, err := b.lookup(id)
	if err != nil {
		return GestureState{}, err
	}
	g.cursor.Set(y)
	return g.state(), nil
}

// Cancel abandons a gesture. Nothing is written.
func (b *Board) Cancel(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, err := b.lookup(id)
	if err != nil {
		return err
	}
	if g.kind == GestureMove {
		g.task.CancelMove()
	} else {
		g.task.CancelResize()
	}
	b.remove(g)
	b.logger.Debug("board: gesture cancelled", slog.String("gesture", id))
	return nil
}

// Confirm commits a gesture and writes the result into the source note. The
// gesture is finished whether or not the write succeeds.
func (b *Board) Confirm(ctx context.Context, id string) (timeline.UpdateRequest, error) {
	b.mu.Lock()
	g, err := b.lookup(id)
	if err != nil {
		b.mu.Unlock()
		return timeline.UpdateRequest{}, err
	}
	if g.kind == GestureMove {
		g.task.ConfirmMove()
	} else {
		g.task.ConfirmResize()
	}
	pending := g.pending
	b.remove(g)
	b.mu.Unlock()

	if pending == nil {
		return timeline.UpdateRequest{}, fmt.Errorf("board: gesture %s produced no update: %w", id, apperr.ErrConflict)
	}
	if err := b.svc.Apply(ctx, *pending); err != nil {
		b.logger.Warn("board: apply failed", slog.String("gesture", id), slog.String("error", err.Error()))
		return *pending, err
	}
	b.publish(sse.EventGestureCommitted, map[string]any{"id": id, "update": pending})
	return *pending, nil
}

func (b *Board) remove(g *gesture) {
	g.task.Close()
	delete(b.gestures, g.id)
}

// Active returns the number of in-flight gestures.
func (b *Board) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.gestures)
}
