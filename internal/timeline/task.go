package timeline

import (
	"time"

	"github.com/starford/dayplanner/internal/planner"
	"github.com/starford/dayplanner/internal/timeutil"
)

// Phase is the gesture state of a Task.
type Phase int

// Gesture phases.
const (
	Idle Phase = iota
	Moving
	Resizing
)

func (p Phase) String() string {
	switch p {
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Relation places an item relative to the current time.
type Relation string

// Relations to now.
const (
	Past    Relation = "past"
	Present Relation = "present"
	Future  Relation = "future"
)

// UpdateRequest is emitted when a gesture is confirmed. Item already carries
// the new values; exactly one of StartMinutes and EndMinutes is set.
type UpdateRequest struct {
	Item         planner.PlanItem `json:"item"`
	StartMinutes *int             `json:"start_minutes,omitempty"`
	EndMinutes   *int             `json:"end_minutes,omitempty"`
}

// Props are the live inputs of a Task. Settings, CurrentTime and
// CursorOffsetY are required; OnUpdate may be nil.
type Props struct {
	Settings      *Signal[Settings]
	CurrentTime   *Signal[time.Time]
	CursorOffsetY *Signal[float64]
	OnUpdate      func(UpdateRequest)
}

// Task is the layout and gesture state of one rendered plan item.
type Task struct {
	item     planner.PlanItem
	props    Props
	phase    Phase
	baseline float64

	nextID    int
	listeners []listener
	unsubs    []func()
}

type listener struct {
	id int
	fn func()
}

// NewTask binds item to its live inputs. Call Close to release the
// subscriptions.
func NewTask(item planner.PlanItem, props Props) *Task {
	t := &Task{item: item, props: props}
	t.unsubs = []func(){
		props.Settings.Subscribe(func(Settings) { t.notify() }),
		props.CurrentTime.Subscribe(func(time.Time) { t.notify() }),
		props.CursorOffsetY.Subscribe(func(float64) {
			if t.phase != Idle {
				t.notify()
			}
		}),
	}
	return t
}

// Close detaches the task from its inputs.
func (t *Task) Close() {
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil
	t.listeners = nil
}

// Item returns the committed plan item.
func (t *Task) Item() planner.PlanItem { return t.item }

// Phase returns the current gesture phase.
func (t *Task) Phase() Phase { return t.phase }

// SetItem replaces the committed item, e.g. after a re-derivation pass. An
// active gesture keeps running against the new item.
func (t *Task) SetItem(item planner.PlanItem) {
	t.item = item
	t.notify()
}

func (t *Task) settings() Settings { return t.props.Settings.Get() }

func (t *Task) cursor() float64 { return t.props.CursorOffsetY.Get() }

func (t *Task) committedOffset() float64 {
	return t.settings().OffsetForMinutes(t.item.StartMinutes)
}

func (t *Task) committedHeight() float64 {
	return max(0, t.settings().HeightForDuration(t.item.DurationMinutes))
}

// Offset is the vertical position of the item's top edge. While moving it
// follows the pointer one-to-one.
func (t *Task) Offset() float64 {
	if t.phase == Moving {
		return t.committedOffset() + t.cursor() - t.baseline
	}
	return t.committedOffset()
}

// Height is the item's vertical extent. While resizing the pointer is the
// bottom edge.
func (t *Task) Height() float64 {
	if t.phase == Resizing {
		return max(0, t.cursor()-t.committedOffset())
	}
	return t.committedHeight()
}

// RelationToNow compares the committed interval with the current time.
func (t *Task) RelationToNow() Relation {
	now := t.props.CurrentTime.Get()
	switch {
	case !t.item.EndTime().After(now):
		return Past
	case t.item.StartTime.After(now):
		return Future
	default:
		return Present
	}
}

// StartMove begins a move gesture at the current pointer position. It is a
// no-op unless the task is idle.
func (t *Task) StartMove() { t.start(Moving) }

// StartResize begins a resize gesture. It is a no-op unless the task is idle.
func (t *Task) StartResize() { t.start(Resizing) }

func (t *Task) start(p Phase) {
	if t.phase != Idle {
		return
	}
	t.phase = p
	t.baseline = t.cursor()
	t.notify()
}

// CancelMove abandons a move gesture.
func (t *Task) CancelMove() { t.cancel(Moving) }

// CancelResize abandons a resize gesture.
func (t *Task) CancelResize() { t.cancel(Resizing) }

func (t *Task) cancel(p Phase) {
	if t.phase != p {
		return
	}
	t.phase = Idle
	t.baseline = 0
	t.notify()
}

// ConfirmMove commits the new start time, snapped to the grid and kept
// within the day, and emits an UpdateRequest.
func (t *Task) ConfirmMove() {
	if t.phase != Moving {
		return
	}
	s := t.settings()
	start := s.Snap(s.MinutesForOffset(t.Offset()))
	latest := max(0, timeutil.MinutesPerDay-1-max(0, t.item.DurationMinutes))
	start = max(0, min(start, latest))

	t.commit(t.item.WithStartMinutes(start), &start, nil)
}

// ConfirmResize commits the new end time, snapped to the grid and never
// before the start, and emits an UpdateRequest.
func (t *Task) ConfirmResize() {
	if t.phase != Resizing {
		return
	}
	s := t.settings()
	end := s.Snap(t.item.StartMinutes + s.DurationForHeight(t.Height()))
	end = max(t.item.StartMinutes, min(end, timeutil.MinutesPerDay-1))

	t.commit(t.item.WithEndMinutes(end), nil, &end)
}

func (t *Task) commit(item planner.PlanItem, start, end *int) {
	t.item = item
	t.phase = Idle
	t.baseline = 0
	if t.props.OnUpdate != nil {
		t.props.OnUpdate(UpdateRequest{Item: item, StartMinutes: start, EndMinutes: end})
	}
	t.notify()
}

// Subscribe registers fn to run whenever any derived value may have changed.
func (t *Task) Subscribe(fn func()) (unsubscribe func()) {
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range t.listeners {
			if l.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

func (t *Task) notify() {
	for _, l := range append([]listener(nil), t.listeners...) {
		l.fn()
	}
}
