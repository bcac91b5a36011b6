package index

import (
	"fmt"
	"log/slog"

	"github.com/starford/dayplanner/internal/checksum"
	"github.com/starford/dayplanner/internal/outline"
	"github.com/starford/dayplanner/internal/storage"
)

// SyncStats counts what a Sync pass changed.
type SyncStats struct {
	Indexed int
	Removed int
	Failed  int
}

// Sync walks the vault and brings the index up to date:
//   - new/changed notes are parsed and upserted
//   - notes removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, m.Path, data); err != nil {
			stats.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			stats.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	logger.Info("sync: done",
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// IndexFile parses data and upserts it into the DB. It reports false when
// the stored checksum already matches and nothing was written.
func IndexFile(db *DB, path string, data []byte) (bool, error) {
	cs := checksum.Sum(data)
	stored, err := db.GetChecksum(path)
	if err != nil {
		return false, err
	}
	if stored == cs {
		return false, nil
	}

	res, err := outline.Parse(path, data)
	if err != nil {
		return false, fmt.Errorf("index: parse %s: %w", path, err)
	}
	row := NoteRow{
		Path:     path,
		Title:    res.Title,
		Checksum: cs,
	}
	if err := db.UpsertNote(row, res.Roots); err != nil {
		return false, err
	}
	return true, nil
}
