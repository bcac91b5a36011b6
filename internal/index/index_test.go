package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/models"
	"github.com/starford/dayplanner/internal/storage"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleRoots(path string) []*models.OutlineNode {
	day := time.Date(2024, 5, 20, 0, 0, 0, 0, time.Local)
	return []*models.OutlineNode{
		{
			Path: path, Line: 2, Symbol: "-", Status: " ", IsTask: true, Text: "09:00 - 10:00 Planning",
			Children: []*models.OutlineNode{
				{Path: path, Line: 3, Symbol: "-", Text: "agenda"},
				{Path: path, Line: 4, Symbol: "-", Status: "x", IsTask: true, Text: "11:00 Gym", Scheduled: &day},
			},
		},
		{Path: path, Line: 6, Symbol: "*", Text: "loose note"},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`).Scan(&count); err != nil {
		t.Fatalf("tasks table missing: %v", err)
	}
}

func TestUpsertAndGetNote(t *testing.T) {
	db := testDB(t)
	row := NoteRow{Path: "daily/2024-05-14.md", Title: "Tuesday", Checksum: "abc123", UpdatedAt: time.Now()}
	if err := db.UpsertNote(row, sampleRoots(row.Path)); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum(row.Path)
	if err != nil || cs != "abc123" {
		t.Errorf("checksum = %q, %v; want abc123", cs, err)
	}
	got, err := db.GetNote(row.Path)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Title != "Tuesday" {
		t.Errorf("title = %q", got.Title)
	}
	if _, err := db.GetNote("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetNote(missing) err = %v, want ErrNotFound", err)
	}
}

func TestNodes_RestoresTree(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1"}, sampleRoots("a.md")); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}

	nodes, err := db.Nodes(context.Background())
	if err != nil {
		t.Fatalf("Nodes: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("len(nodes) = %d, want 4", len(nodes))
	}
	root := nodes[0]
	if root.Line != 2 || !root.IsTask || root.Status != " " || root.Text != "09:00 - 10:00 Planning" {
		t.Errorf("root = %+v", root)
	}
	if len(root.Children) != 2 || root.Children[0].Line != 3 || root.Children[1].Line != 4 {
		t.Fatalf("children = %+v", root.Children)
	}
	gym := root.Children[1]
	if gym.Scheduled == nil || gym.Scheduled.Format("2006-01-02") != "2024-05-20" {
		t.Errorf("scheduled = %v", gym.Scheduled)
	}
	if nodes[3].Symbol != "*" || nodes[3].IsTask {
		t.Errorf("last = %+v", nodes[3])
	}
}

func TestNodesFor_PathsAndScheduledWindow(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "daily/2024-05-14.md", Checksum: "1"}, []*models.OutlineNode{
		{Path: "daily/2024-05-14.md", Line: 0, Symbol: "-", IsTask: true, Status: " ", Text: "09:00 daily"},
	})
	_ = db.UpsertNote(NoteRow{Path: "projects/x.md", Checksum: "2"}, sampleRoots("projects/x.md"))
	_ = db.UpsertNote(NoteRow{Path: "other.md", Checksum: "3"}, []*models.OutlineNode{
		{Path: "other.md", Line: 0, Symbol: "-", Text: "10:00 ignored"},
	})

	ctx := context.Background()
	from := time.Date(2024, 5, 14, 0, 0, 0, 0, time.Local)

	nodes, err := db.NodesFor(ctx, []string{"daily/2024-05-14.md"}, from, from.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("NodesFor: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Path != "daily/2024-05-14.md" {
		t.Errorf("window without scheduled items: %+v", nodes)
	}

	nodes, err = db.NodesFor(ctx, nil, from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("NodesFor: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("len(nodes) = %d, want the whole projects/x.md note", len(nodes))
	}
	for _, n := range nodes {
		if n.Path != "projects/x.md" {
			t.Errorf("unexpected node from %s", n.Path)
		}
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x"}, sampleRoots("del.md"))

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Errorf("deleted note still has checksum %q", cs)
	}
	nodes, _ := db.Nodes(context.Background())
	if len(nodes) != 0 {
		t.Errorf("expected no tasks after delete, got %d", len(nodes))
	}
}

func TestUpsertReplacesTasks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "up.md", Checksum: "1"}, sampleRoots("up.md"))
	_ = db.UpsertNote(NoteRow{Path: "up.md", Checksum: "2"}, []*models.OutlineNode{
		{Path: "up.md", Line: 0, Symbol: "-", Text: "only one"},
	})

	cs, _ := db.GetChecksum("up.md")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	nodes, _ := db.Nodes(context.Background())
	if len(nodes) != 1 || nodes[0].Text != "only one" {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestAllPathsAndChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Checksum: "1"}, nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Checksum: "2"}, nil)

	paths, err := db.AllPaths()
	if err != nil || len(paths) != 2 {
		t.Errorf("AllPaths = %v, %v", paths, err)
	}
	sums, err := db.AllChecksums()
	if err != nil || sums["a.md"] != "1" || sums["b.md"] != "2" {
		t.Errorf("AllChecksums = %v, %v", sums, err)
	}
}

func TestSearchTasks(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "s.md", Checksum: "1"}, []*models.OutlineNode{
		{Path: "s.md", Line: 0, Symbol: "-", Status: " ", IsTask: true, Text: "09:00 Call Dentist"},
		{Path: "s.md", Line: 1, Symbol: "-", Text: "100% done_ish"},
	})

	ctx := context.Background()
	hits, err := db.SearchTasks(ctx, "dentist", 10)
	if err != nil {
		t.Fatalf("SearchTasks: %v", err)
	}
	if len(hits) != 1 || hits[0].Line != 0 || !hits[0].IsTask {
		t.Errorf("hits = %+v", hits)
	}

	hits, _ = db.SearchTasks(ctx, "%", 10)
	if len(hits) != 1 || hits[0].Line != 1 {
		t.Errorf("wildcards must be literal: %+v", hits)
	}
}

func TestSync_IndexesAndPrunes(t *testing.T) {
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)

	_ = store.Write("2024-05-14.md", []byte("# Tue\n- [ ] 09:00 Standup\n"))
	_ = store.Write("projects/p.md", []byte("- [ ] 10:00 Ship ⏳ 2024-05-15\n"))

	stats, err := Sync(db, store, quietLogger())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if stats.Indexed != 2 || stats.Removed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	stats, _ = Sync(db, store, quietLogger())
	if stats.Indexed != 0 {
		t.Errorf("second sync should be a no-op: %+v", stats)
	}

	_ = os.Remove(filepath.Join(vaultDir, "2024-05-14.md"))
	stats, _ = Sync(db, store, quietLogger())
	if stats.Removed != 1 {
		t.Errorf("stats = %+v, want 1 removed", stats)
	}
	nodes, _ := db.Nodes(context.Background())
	if len(nodes) != 1 || nodes[0].Scheduled == nil {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestIndexFile_SkipsUnchanged(t *testing.T) {
	db := testDB(t)
	data := []byte("- [ ] 09:00 a\n")
	changed, err := IndexFile(db, "a.md", data)
	if err != nil || !changed {
		t.Fatalf("first IndexFile = %v, %v", changed, err)
	}
	changed, err = IndexFile(db, "a.md", data)
	if err != nil || changed {
		t.Errorf("second IndexFile = %v, %v; want unchanged", changed, err)
	}
}
