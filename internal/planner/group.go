package planner

import (
	"errors"
	"path/filepath"
	"sort"
	"time"

	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/timeutil"
)

// DailyNotes resolves the canonical note of a calendar day. An empty path
// means the day has no canonical note.
type DailyNotes interface {
	PathFor(day time.Time) string
}

// TasksForDay is the bucket of one visible day.
type TasksForDay struct {
	Day      time.Time  `json:"day"`
	WithTime []PlanItem `json:"with_time"`
}

// EmptyTasksForDay is the record for a day with nothing scheduled.
func EmptyTasksForDay(day time.Time) TasksForDay {
	return TasksForDay{Day: timeutil.StartOfDay(day), WithTime: []PlanItem{}}
}

// IsEmpty reports whether the bucket holds no items.
func (t TasksForDay) IsEmpty() bool {
	return len(t.WithTime) == 0
}

// Grouping is the result of one derivation pass over a set of visible days.
type Grouping struct {
	Order  []string               // day keys in visible order
	Days   map[string]TasksForDay // exactly one entry per visible day
	Errors []*ParseError
}

// GroupByDay buckets time-tagged nodes by the visible day they belong to. A
// node belongs to day D when it lives in D's daily note or is scheduled on D.
// Parse failures are collected and never abort the pass.
func GroupByDay(visible []time.Time, nodes []*models.OutlineNode, daily DailyNotes) Grouping {
	g := Grouping{
		Order: make([]string, 0, len(visible)),
		Days:  make(map[string]TasksForDay, len(visible)),
	}

	timed := make([]*models.OutlineNode, 0, len(nodes))
	for _, n := range nodes {
		if n.IsTask && HasTimeToken(n.Text) {
			timed = append(timed, n)
		}
	}

	for _, day := range visible {
		key := timeutil.DayKey(day)
		if _, seen := g.Days[key]; seen {
			continue
		}
		g.Order = append(g.Order, key)

		var forDay []*models.OutlineNode
		notePath := ""
		if daily != nil {
			notePath = daily.PathFor(day)
		}
		for _, n := range timed {
			if belongsTo(n, day, notePath) {
				forDay = append(forDay, n)
			}
		}

		if len(forDay) == 0 {
			g.Days[key] = EmptyTasksForDay(day)
			continue
		}
		bucket, errs := MapToTasksForDay(day, forDay)
		g.Days[key] = bucket
		g.Errors = append(g.Errors, errs...)
	}
	return g
}

func belongsTo(n *models.OutlineNode, day time.Time, notePath string) bool {
	if notePath != "" && filepath.Clean(n.Path) == filepath.Clean(notePath) {
		return true
	}
	return n.Scheduled != nil && timeutil.SameDay(*n.Scheduled, day)
}

// MapToTasksForDay builds the plan items of one day, ordered by start.
func MapToTasksForDay(day time.Time, nodes []*models.OutlineNode) (TasksForDay, []*ParseError) {
	bucket := EmptyTasksForDay(day)
	var errs []*ParseError
	for _, n := range nodes {
		item, err := FromNode(n, day)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				errs = append(errs, pe)
				continue
			}
			errs = append(errs, &ParseError{Location: n.Location(), Line: LineOf(n), Err: err})
			continue
		}
		bucket.WithTime = append(bucket.WithTime, item)
	}
	sort.SliceStable(bucket.WithTime, func(i, j int) bool {
		return bucket.WithTime[i].StartMinutes < bucket.WithTime[j].StartMinutes
	})
	return bucket, errs
}
