// Package dailynote maps calendar days to their canonical note paths.
package dailynote

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/dayplanner/internal/timeutil"
)

// DefaultFormat is the date layout used when none is configured.
const DefaultFormat = timeutil.DayKeyLayout

// Resolver implements the daily note naming convention of a vault: one note
// per day named after the date, optionally inside a folder.
type Resolver struct {
	Folder   string
	Format   string
	Location *time.Location
}

// NewResolver returns a resolver for folder and format. An empty format
// falls back to DefaultFormat.
func NewResolver(folder, format string) *Resolver {
	if format == "" {
		format = DefaultFormat
	}
	return &Resolver{Folder: folder, Format: format, Location: time.Local}
}

// PathFor returns the vault-relative path of day's note.
func (r *Resolver) PathFor(day time.Time) string {
	name := day.Format(r.Format) + ".md"
	if r.Folder == "" {
		return name
	}
	return filepath.Join(filepath.FromSlash(r.Folder), name)
}

// DayFor reports the day a path is the daily note of.
func (r *Resolver) DayFor(path string) (time.Time, bool) {
	path = filepath.Clean(path)
	dir, file := filepath.Split(path)
	want := filepath.Clean(filepath.FromSlash(r.Folder))
	if r.Folder == "" {
		want = "."
	}
	if filepath.Clean(dir+".") != want {
		return time.Time{}, false
	}
	if filepath.Ext(file) != ".md" {
		return time.Time{}, false
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(r.Format, strings.TrimSuffix(file, ".md"), loc)
	if err != nil {
		return time.Time{}, false
	}
	return timeutil.StartOfDay(day), true
}
