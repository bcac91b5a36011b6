package planner

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/timeutil"
)

// DefaultDurationMinutes is the length given to items that declare only a
// start time.
const DefaultDurationMinutes = 30

// NoRawTime marks a raw time token that was not present in the source text.
const NoRawTime = "-"

// PlanItem is a single time-bounded schedule entry.
type PlanItem struct {
	ID              string          `json:"id"`
	Text            string          `json:"text"`
	FirstLineText   string          `json:"first_line_text"`
	ListTokens      string          `json:"list_tokens"`
	RawStartTime    string          `json:"raw_start_time"`
	RawEndTime      string          `json:"raw_end_time"`
	StartTime       time.Time       `json:"start_time"`
	StartMinutes    int             `json:"start_minutes"`
	DurationMinutes int             `json:"duration_minutes"`
	Location        models.Location `json:"location"`
}

// EndMinutes returns the minute-of-day the item ends at. It may exceed a day
// or precede StartMinutes when the duration is negative.
func (p PlanItem) EndMinutes() int {
	return p.StartMinutes + p.DurationMinutes
}

// EndTime returns the absolute end of the item.
func (p PlanItem) EndTime() time.Time {
	return p.StartTime.Add(time.Duration(p.DurationMinutes) * time.Minute)
}

// WithStartMinutes returns a copy moved to minutes on the same day, keeping
// the duration.
func (p PlanItem) WithStartMinutes(minutes int) PlanItem {
	p.StartTime = timeutil.AtMinutes(p.StartTime, minutes)
	p.StartMinutes = timeutil.MinutesSinceMidnight(p.StartTime)
	return p
}

// WithEndMinutes returns a copy ending at minutes, keeping the start.
func (p PlanItem) WithEndMinutes(minutes int) PlanItem {
	p.DurationMinutes = minutes - p.StartMinutes
	return p
}

// BuildInput is everything needed to build one plan item.
type BuildInput struct {
	Line     string // "symbol [status] 09:00 - 10:00 text"
	Body     string // flattened node, first line included
	Day      time.Time
	Location models.Location
}

// BuildPlanItem parses a schedule line into a PlanItem anchored to in.Day.
// Lines without a time token must be filtered out by the caller; a token that
// is recognized but malformed yields a *ParseError.
func BuildPlanItem(in BuildInput) (PlanItem, error) {
	line := strings.TrimRight(in.Line, "\r\n")
	listTokens, rest := SplitListTokens(line)

	tok, err := ParseTimeToken(rest)
	if err != nil {
		return PlanItem{}, &ParseError{Location: in.Location, Line: line, Err: err}
	}

	startTime := timeutil.AtMinutes(in.Day, tok.Start)
	endTime := startTime.Add(DefaultDurationMinutes * time.Minute)
	rawEnd := NoRawTime
	if tok.HasEnd {
		endTime = timeutil.AtMinutes(in.Day, tok.End)
		rawEnd = tok.RawEnd
	}

	firstLine := strings.TrimSpace(rest[tok.Len:])

	return PlanItem{
		ID:              uuid.NewString(),
		Text:            joinBody(firstLine, in.Body),
		FirstLineText:   firstLine,
		ListTokens:      listTokens,
		RawStartTime:    tok.RawStart,
		RawEndTime:      rawEnd,
		StartTime:       startTime,
		StartMinutes:    timeutil.MinutesSinceMidnight(startTime),
		DurationMinutes: timeutil.DiffInMinutes(endTime, startTime),
		Location:        in.Location,
	}, nil
}

// joinBody replaces the body's own first line with firstLine.
func joinBody(firstLine, body string) string {
	_, tail, ok := strings.Cut(body, "\n")
	if !ok {
		return firstLine
	}
	tail = strings.TrimRight(tail, "\n")
	if tail == "" {
		return firstLine
	}
	return firstLine + "\n" + tail
}

// FromNode builds the plan item for an outline node anchored to day.
func FromNode(n *models.OutlineNode, day time.Time) (PlanItem, error) {
	return BuildPlanItem(BuildInput{
		Line:     LineOf(n),
		Body:     Flatten(n),
		Day:      day,
		Location: n.Location(),
	})
}
