package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dayplanner/internal/index"
	"github.com/starford/dayplanner/internal/schedule"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

// DaysResponse is the layout of the visible days (aliased from the domain layer).
type DaysResponse = schedule.View

// GestureResponse describes an in-flight gesture (aliased from the domain layer).
type GestureResponse = schedule.GestureState

// SettingsDTO mirrors the display settings.
type SettingsDTO = timeline.Settings

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = schedule.NoteDetail

// StartGestureRequest is the request body for starting a gesture.
type StartGestureRequest struct {
	Kind    string  `json:"kind" example:"move" validate:"required"`
	Day     string  `json:"day" example:"2024-05-14" validate:"required"`
	ItemID  string  `json:"item_id" example:"3f0c..." validate:"required"`
	CursorY float64 `json:"cursor_y" example:"1320"`
}

// Validate validates the request.
func (r StartGestureRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(string(schedule.GestureMove), string(schedule.GestureResize))),
		validation.Field(&r.Day, validation.Required, validation.Date(timeutil.DayKeyLayout)),
		validation.Field(&r.ItemID, validation.Required),
	)
}

// CursorRequest is the request body for moving a gesture's pointer.
type CursorRequest struct {
	OffsetY float64 `json:"offset_y" example:"1561"`
}

// ConfirmResponse is returned after a gesture was written back.
type ConfirmResponse = timeline.UpdateRequest

// HeadingResponse carries the snippet that starts a plan.
type HeadingResponse struct {
	Markdown string `json:"markdown" example:"# Day planner\n\n- \n" validate:"required"`
}

// InsertHeadingResponse is returned after the heading was added to a note.
type InsertHeadingResponse struct {
	Path string `json:"path" example:"2024-05-14.md" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.TaskHit `json:"results" validate:"required"`
}
