// Package timeline derives timeline geometry for plan items and drives the
// move/resize gesture state machine.
package timeline

import (
	"math"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// zoomScale maps a zoom level to pixels per minute. Strictly increasing.
var zoomScale = [...]float64{0.5, 1, 2, 3, 4}

// MaxZoomLevel is the highest supported zoom level.
const MaxZoomLevel = len(zoomScale) - 1

// Settings are the display settings the layout depends on.
type Settings struct {
	ZoomLevel           int    `json:"zoom_level" yaml:"zoom_level"`
	StartHour           int    `json:"start_hour" yaml:"start_hour"`
	PlannerHeading      string `json:"planner_heading" yaml:"heading"`
	PlannerHeadingLevel int    `json:"planner_heading_level" yaml:"heading_level"`
	SnapStepMinutes     int    `json:"snap_step_minutes" yaml:"snap_step_minutes"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		ZoomLevel:           2,
		StartHour:           0,
		PlannerHeading:      "Day planner",
		PlannerHeadingLevel: 1,
		SnapStepMinutes:     5,
	}
}

// Validate validates the settings.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ZoomLevel, validation.Min(0), validation.Max(MaxZoomLevel)),
		validation.Field(&s.StartHour, validation.Min(0), validation.Max(23)),
		validation.Field(&s.PlannerHeading, validation.Required),
		validation.Field(&s.PlannerHeadingLevel, validation.Required, validation.Min(1), validation.Max(6)),
		validation.Field(&s.SnapStepMinutes, validation.Required, validation.Min(1), validation.Max(60)),
	)
}

// PixelsPerMinute returns the vertical density for a zoom level. Out of range
// levels are clamped.
func PixelsPerMinute(zoom int) float64 {
	zoom = max(0, min(zoom, MaxZoomLevel))
	return zoomScale[zoom]
}

// PixelsPerMinute returns the density of s's zoom level.
func (s Settings) PixelsPerMinute() float64 {
	return PixelsPerMinute(s.ZoomLevel)
}

// OffsetForMinutes maps a minute-of-day to a vertical offset. Minutes before
// the start hour yield a negative (offscreen) offset.
func (s Settings) OffsetForMinutes(minutes int) float64 {
	return float64(minutes-s.StartHour*60) * s.PixelsPerMinute()
}

// MinutesForOffset is the inverse of OffsetForMinutes, rounded to the nearest
// minute.
func (s Settings) MinutesForOffset(offset float64) int {
	return int(math.Round(offset/s.PixelsPerMinute())) + s.StartHour*60
}

// HeightForDuration maps a duration to a height in pixels.
func (s Settings) HeightForDuration(minutes int) float64 {
	return float64(minutes) * s.PixelsPerMinute()
}

// DurationForHeight is the inverse of HeightForDuration.
func (s Settings) DurationForHeight(height float64) int {
	return int(math.Round(height / s.PixelsPerMinute()))
}

// Snap rounds minutes to the nearest multiple of the snap step.
func (s Settings) Snap(minutes int) int {
	step := s.SnapStepMinutes
	if step <= 1 {
		return minutes
	}
	return int(math.Round(float64(minutes)/float64(step))) * step
}

// HeadingMarkdown returns the snippet inserted into a note to start a plan:
// the heading line, a blank line and an empty list item.
func HeadingMarkdown(s Settings) string {
	level := max(1, s.PlannerHeadingLevel)
	return strings.Repeat("#", level) + " " + s.PlannerHeading + "\n\n- \n"
}
