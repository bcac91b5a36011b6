package index

import (
	"context"
	"time"

	"github.com/starford/dayplanner/internal/models"
)

// TaskIndex defines the index operations the rest of the application uses.
type TaskIndex interface {
	UpsertNote(n NoteRow, roots []*models.OutlineNode) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Nodes(ctx context.Context) ([]*models.OutlineNode, error)
	NodesFor(ctx context.Context, paths []string, from, to time.Time) ([]*models.OutlineNode, error)
	SearchTasks(ctx context.Context, query string, limit int) ([]TaskHit, error)
	Close() error
}

// Verify *DB satisfies TaskIndex at compile time.
var _ TaskIndex = (*DB)(nil)
