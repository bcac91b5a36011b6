package planner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/dayplanner/internal/models"
)

var (
	// ErrNoTimeToken is returned when a line carries no leading time token.
	ErrNoTimeToken = errors.New("no time token")
	// ErrInvalidTime is returned when a time token is recognized but out of range.
	ErrInvalidTime = errors.New("invalid time")
)

// ParseError reports a single line that looked scheduled but could not be
// turned into a plan item.
type ParseError struct {
	Location models.Location `json:"location"`
	Line     string          `json:"line"`
	Err      error           `json:"-"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("planner: %s:%d: %v", e.Location.Path, e.Location.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Message returns the underlying cause as text, for JSON payloads.
func (e *ParseError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// MarshalJSON includes the cause as "message".
func (e *ParseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Location models.Location `json:"location"`
		Line     string          `json:"line"`
		Message  string          `json:"message"`
	}{e.Location, e.Line, e.Message()})
}
