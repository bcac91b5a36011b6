package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/timeutil"
)

const defaultSearchLimit = 50

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskHit is one list item matched by SearchTasks.
type TaskHit struct {
	Path      string     `json:"path"`
	Line      int        `json:"line"`
	Symbol    string     `json:"symbol"`
	Status    string     `json:"status"`
	IsTask    bool       `json:"is_task"`
	Text      string     `json:"text"`
	Scheduled *time.Time `json:"scheduled,omitempty"`
}

// UpsertNote replaces a note and all of its list items within a transaction.
func (db *DB) UpsertNote(n NoteRow, roots []*models.OutlineNode) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO notes (path, title, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM tasks WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear tasks: %w", err)
	}
	if len(roots) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO tasks (path, line, parent_line, ord, symbol, status, is_task, text, scheduled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()

		type frame struct {
			node   *models.OutlineNode
			parent sql.NullInt64
		}
		ord := 0
		for _, root := range roots {
			stack := []frame{{node: root}}
			for len(stack) > 0 {
				f := stack[len(stack)-1]
				stack = stack[:len(stack)-1]

				var scheduled sql.NullString
				if f.node.Scheduled != nil {
					scheduled = sql.NullString{String: timeutil.DayKey(*f.node.Scheduled), Valid: true}
				}
				if _, err := stmt.Exec(n.Path, f.node.Line, f.parent, ord, f.node.Symbol,
					f.node.Status, f.node.IsTask, f.node.Text, scheduled); err != nil {
					return fmt.Errorf("index: insert task %s:%d: %w", n.Path, f.node.Line, err)
				}
				ord++

				parent := sql.NullInt64{Int64: int64(f.node.Line), Valid: true}
				for i := len(f.node.Children) - 1; i >= 0; i-- {
					stack = append(stack, frame{node: f.node.Children[i], parent: parent})
				}
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note and its list items.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM tasks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete tasks: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns a note row or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	var n NoteRow
	err := db.conn.QueryRow(`SELECT path, title, checksum, updated_at FROM notes WHERE path = ?`, path).
		Scan(&n.Path, &n.Title, &n.Checksum, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// AllPaths returns every indexed note path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every note, keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const nodeColumns = `path, line, parent_line, symbol, status, is_task, text, scheduled`

// Nodes returns every indexed list item, flat, in document order. Parent and
// child links are restored.
func (db *DB) Nodes(ctx context.Context) ([]*models.OutlineNode, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+nodeColumns+` FROM tasks ORDER BY path, ord`)
	if err != nil {
		return nil, fmt.Errorf("index: nodes: %w", err)
	}
	return scanNodes(rows)
}

// NodesFor returns the list items of the notes at paths and of every note
// holding an item scheduled between from and to (inclusive days). Whole
// notes are returned so that children can be flattened.
func (db *DB) NodesFor(ctx context.Context, paths []string, from, to time.Time) ([]*models.OutlineNode, error) {
	var (
		where strings.Builder
		args  = []any{timeutil.DayKey(from), timeutil.DayKey(to)}
	)
	where.WriteString(`path IN (SELECT path FROM tasks WHERE scheduled BETWEEN ? AND ?)`)
	if len(paths) > 0 {
		where.WriteString(` OR path IN (?` + strings.Repeat(`, ?`, len(paths)-1) + `)`)
		for _, p := range paths {
			args = append(args, p)
		}
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM tasks WHERE `+where.String()+` ORDER BY path, ord`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: nodes for: %w", err)
	}
	return scanNodes(rows)
}

func scanNodes(rows *sql.Rows) ([]*models.OutlineNode, error) {
	defer rows.Close()

	type key struct {
		path string
		line int
	}
	byLine := make(map[key]*models.OutlineNode)
	var out []*models.OutlineNode
	for rows.Next() {
		var (
			n         models.OutlineNode
			parent    sql.NullInt64
			scheduled sql.NullString
		)
		if err := rows.Scan(&n.Path, &n.Line, &parent, &n.Symbol, &n.Status, &n.IsTask, &n.Text, &scheduled); err != nil {
			return nil, fmt.Errorf("index: scan node: %w", err)
		}
		if scheduled.Valid {
			if day, err := timeutil.ParseDayKey(scheduled.String, time.Local); err == nil {
				n.Scheduled = &day
			}
		}
		node := &n
		byLine[key{n.Path, n.Line}] = node
		if parent.Valid {
			if p, ok := byLine[key{n.Path, int(parent.Int64)}]; ok {
				p.Children = append(p.Children, node)
			}
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// SearchTasks returns list items whose text contains query, case-insensitively.
func (db *DB) SearchTasks(ctx context.Context, query string, limit int) ([]TaskHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, line, symbol, status, is_task, text, scheduled
		FROM tasks
		WHERE text LIKE ? ESCAPE '\'
		ORDER BY path, ord
		LIMIT ?`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskHit
	for rows.Next() {
		var (
			h         TaskHit
			scheduled sql.NullString
		)
		if err := rows.Scan(&h.Path, &h.Line, &h.Symbol, &h.Status, &h.IsTask, &h.Text, &scheduled); err != nil {
			return nil, fmt.Errorf("index: scan hit: %w", err)
		}
		if scheduled.Valid {
			if day, err := timeutil.ParseDayKey(scheduled.String, time.Local); err == nil {
				h.Scheduled = &day
			}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
