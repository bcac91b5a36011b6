// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/dayplanner/internal/models"

// Provider is the interface for vault file operations. Paths are relative to
// the vault root.
type Provider interface {
	// List returns metadata for every note under dir. Hidden directories such
	// as .obsidian or .trash are skipped.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of a note. A missing note yields an error
	// wrapping apperr.ErrNotFound.
	Read(path string) ([]byte, error)
	// Write atomically replaces the note at path, creating parent folders.
	Write(path string, content []byte) error
	// Exists reports whether a note exists at path.
	Exists(path string) (bool, error)
}
