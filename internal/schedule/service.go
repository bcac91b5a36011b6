// Package schedule derives day plans from the task index, persists confirmed
// gestures back into notes and tracks in-flight gestures.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/checksum"
	"github.com/starford/dayplanner/internal/index"
	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/outline"
	"github.com/starford/dayplanner/internal/planner"
	"github.com/starford/dayplanner/internal/storage"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

// Result is the derived plan for a set of visible days.
type Result struct {
	Order  []string                       `json:"order"`
	Days   map[string]planner.TasksForDay `json:"days"`
	Errors []*planner.ParseError          `json:"errors"`
}

type cacheKey struct {
	gen uint64
	day string
}

type dayEntry struct {
	bucket planner.TasksForDay
	errs   []*planner.ParseError
}

// Options tune a Service.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Service coordinates the vault, the index and the planner.
type Service struct {
	store  storage.Provider
	db     *index.DB
	daily  planner.DailyNotes
	logger *slog.Logger

	cache *expirable.LRU[cacheKey, dayEntry]
	gen   atomic.Uint64

	// writeMu serializes read-modify-write cycles on notes.
	writeMu sync.Mutex
}

// NewService creates a schedule service.
func NewService(store storage.Provider, db *index.DB, daily planner.DailyNotes, opts Options) *Service {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:  store,
		db:     db,
		daily:  daily,
		logger: opts.Logger,
		cache:  expirable.NewLRU[cacheKey, dayEntry](opts.CacheSize, nil, opts.CacheTTL),
	}
}

// Invalidate drops every derived day. Derivations already running when it is
// called never populate the new generation.
func (s *Service) Invalidate() {
	s.gen.Add(1)
	s.cache.Purge()
}

// Days derives the plan of each requested day. Within one cache generation
// repeated calls return the same items, ids included.
func (s *Service) Days(ctx context.Context, days []time.Time) (*Result, error) {
	gen := s.gen.Load()
	res := &Result{
		Order:  make([]string, 0, len(days)),
		Days:   make(map[string]planner.TasksForDay, len(days)),
		Errors: []*planner.ParseError{},
	}

	var missing []time.Time
	for _, day := range days {
		key := timeutil.DayKey(day)
		if _, seen := res.Days[key]; seen {
			continue
		}
		res.Order = append(res.Order, key)
		if e, ok := s.cache.Get(cacheKey{gen, key}); ok {
			res.Days[key] = e.bucket
			res.Errors = append(res.Errors, e.errs...)
			continue
		}
		res.Days[key] = planner.EmptyTasksForDay(day)
		missing = append(missing, day)
	}
	if len(missing) == 0 {
		return res, nil
	}

	nodes, err := s.loadNodes(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, day := range missing {
		g := planner.GroupByDay([]time.Time{day}, nodes, s.daily)
		key := timeutil.DayKey(day)
		entry := dayEntry{bucket: g.Days[key], errs: g.Errors}
		for _, pe := range g.Errors {
			s.logger.Warn("schedule: unparseable item",
				slog.String("path", pe.Location.Path),
				slog.Int("line", pe.Location.Line),
				slog.String("error", pe.Message()))
		}
		res.Days[key] = entry.bucket
		res.Errors = append(res.Errors, entry.errs...)
		if s.gen.Load() == gen {
			s.cache.Add(cacheKey{gen, key}, entry)
		}
	}
	return res, nil
}

func (s *Service) loadNodes(ctx context.Context, days []time.Time) ([]*models.OutlineNode, error) {
	from, to := days[0], days[0]
	paths := make([]string, 0, len(days))
	for _, d := range days {
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
		if s.daily != nil {
			if p := s.daily.PathFor(d); p != "" {
				paths = append(paths, p)
			}
		}
	}
	nodes, err := s.db.NodesFor(ctx, paths, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule: load nodes: %w", err)
	}
	return nodes, nil
}

// Day derives the plan of a single day.
func (s *Service) Day(ctx context.Context, day time.Time) (planner.TasksForDay, error) {
	res, err := s.Days(ctx, []time.Time{day})
	if err != nil {
		return planner.TasksForDay{}, err
	}
	return res.Days[timeutil.DayKey(day)], nil
}

// Item finds a plan item of day by id.
func (s *Service) Item(ctx context.Context, day time.Time, id string) (planner.PlanItem, error) {
	bucket, err := s.Day(ctx, day)
	if err != nil {
		return planner.PlanItem{}, err
	}
	i := slices.IndexFunc(bucket.WithTime, func(p planner.PlanItem) bool { return p.ID == id })
	if i < 0 {
		return planner.PlanItem{}, fmt.Errorf("schedule: item %s on %s: %w", id, timeutil.DayKey(day), apperr.ErrNotFound)
	}
	return bucket.WithTime[i], nil
}

// Apply writes a confirmed gesture back into its note. The source line must
// still carry the item's time token and text, otherwise apperr.ErrStale is
// returned and nothing is written.
func (s *Service) Apply(ctx context.Context, req timeline.UpdateRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	item := req.Item
	path := item.Location.Path
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("schedule: apply %s: %w", path, apperr.ErrStale)
		}
		return err
	}

	lines := strings.Split(string(data), "\n")
	n := item.Location.Line
	if n < 0 || n >= len(lines) {
		return fmt.Errorf("schedule: apply %s:%d: line out of range: %w", path, n, apperr.ErrStale)
	}
	line, cr := strings.CutSuffix(lines[n], "\r")
	if !sameItem(path, line, item) {
		return fmt.Errorf("schedule: apply %s:%d: line changed: %w", path, n, apperr.ErrStale)
	}

	// The note gets the requested wall-clock minutes. item's own minutes
	// may have been normalized across a DST gap.
	start := item.StartMinutes
	if req.StartMinutes != nil {
		start = *req.StartMinutes
	}
	// Items that never declared an end keep their default duration.
	var end *int
	switch {
	case req.EndMinutes != nil:
		end = req.EndMinutes
	case item.RawEndTime != planner.NoRawTime:
		e := start + item.DurationMinutes
		end = &e
	}
	rewritten, err := RewriteTimeRange(line, start, end)
	if err != nil {
		return fmt.Errorf("schedule: apply %s:%d: %w", path, n, err)
	}
	if cr {
		rewritten += "\r"
	}
	lines[n] = rewritten
	updated := []byte(strings.Join(lines, "\n"))

	if err := s.store.Write(path, updated); err != nil {
		return err
	}
	if _, err := index.IndexFile(s.db, path, updated); err != nil {
		return err
	}
	s.Invalidate()

	s.logger.Info("schedule: applied",
		slog.String("path", path),
		slog.Int("line", n),
		slog.String("line_text", strings.TrimSpace(rewritten)))
	return nil
}

// sameItem reports whether line still is the list item item was built from.
func sameItem(path string, line string, item planner.PlanItem) bool {
	res, err := outline.Parse(path, []byte(line))
	if err != nil || len(res.Roots) != 1 {
		return false
	}
	node := res.Roots[0]
	if !node.IsTask {
		return false
	}
	tok, err := planner.ParseTimeToken(node.Text)
	if err != nil {
		return false
	}
	return strings.TrimSpace(node.Text[tok.Len:]) == item.FirstLineText
}

// InsertHeading adds the planner heading to day's note, creating the note
// when it does not exist. It returns the note path.
func (s *Service) InsertHeading(ctx context.Context, day time.Time, settings timeline.Settings) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.daily == nil {
		return "", fmt.Errorf("schedule: no daily notes configured: %w", apperr.ErrInvalidInput)
	}
	path := s.daily.PathFor(day)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	heading := timeline.HeadingMarkdown(settings)
	headingLine, _, _ := strings.Cut(heading, "\n")

	var content []byte
	exists, err := s.store.Exists(path)
	if err != nil {
		return "", err
	}
	if exists {
		existing, err := s.store.Read(path)
		if err != nil {
			return "", err
		}
		for _, l := range strings.Split(string(existing), "\n") {
			if strings.TrimRight(l, "\r") == headingLine {
				return path, fmt.Errorf("schedule: %s already has a plan: %w", path, apperr.ErrAlreadyExists)
			}
		}
		content = existing
		if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
			content = append(content, '\n')
		}
		if len(content) > 0 {
			content = append(content, '\n')
		}
	}
	content = append(content, heading...)

	if err := s.store.Write(path, content); err != nil {
		return "", err
	}
	if _, err := index.IndexFile(s.db, path, content); err != nil {
		return "", err
	}
	s.Invalidate()
	s.logger.Info("schedule: heading inserted", slog.String("path", path))
	return path, nil
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Note reads a note from the vault.
func (s *Service) Note(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return nil, err
	}
	res, err := outline.Parse(path, data)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		Path:        path,
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Frontmatter: res.Frontmatter,
	}, nil
}

// Search finds list items by text.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.TaskHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("schedule: empty query: %w", apperr.ErrInvalidInput)
	}
	hits, err := s.db.SearchTasks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []index.TaskHit{}
	}
	return hits, nil
}
