package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dayplanner/internal/dailynote"
	"github.com/starford/dayplanner/internal/schedule"
	"github.com/starford/dayplanner/internal/storage"
	"github.com/starford/dayplanner/internal/testutil"
	"github.com/starford/dayplanner/internal/timeline"
)

const dailyNote = `# Monday

- [ ] 09:00 Standup
- [ ] 11:00 - 12:00 Review
	- bring the numbers
`

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	testutil.WriteNotes(t, store, db, map[string]string{"2025-01-20.md": dailyNote})

	logger := testutil.Logger()
	svc := schedule.NewService(store, db, dailynote.NewResolver("", ""), schedule.Options{Logger: logger})
	board := schedule.NewBoard(svc, timeline.DefaultSettings(), nil, logger)
	return New(svc, board), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so dispatch to the
	// handler functions.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_day_plan":
		result, err = srv.getDayPlan(ctx, req)
	case "search_tasks":
		result, err = srv.searchTasks(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "reschedule_item":
		result, err = srv.rescheduleItem(ctx, req)
	case "get_planner_heading":
		result, err = srv.getPlannerHeading(ctx, req)
	case "insert_planner_heading":
		result, err = srv.insertPlannerHeading(ctx, req)
	case "get_time_format_contract":
		result, err = srv.getTimeFormatContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dayPlan(t *testing.T, srv *Server) schedule.View {
	t.Helper()
	r := callTool(t, srv, "get_day_plan", map[string]interface{}{"date": "2025-01-20"})
	if r.IsError {
		t.Fatalf("get_day_plan: %s", resultText(r))
	}
	var view schedule.View
	if err := json.Unmarshal([]byte(resultText(r)), &view); err != nil {
		t.Fatal(err)
	}
	return view
}

func TestGetDayPlan(t *testing.T) {
	srv, _ := testServer(t)

	view := dayPlan(t, srv)
	if len(view.Days) != 1 || len(view.Days[0].Items) != 2 {
		t.Fatalf("view = %+v", view)
	}
	review := view.Days[0].Items[1].Item
	if review.FirstLineText != "Review" || review.DurationMinutes != 60 {
		t.Errorf("review = %+v", review)
	}
	if review.Text != "Review\n\t- bring the numbers" {
		t.Errorf("text = %q", review.Text)
	}

	r := callTool(t, srv, "get_day_plan", map[string]interface{}{"date": "2025-01-20", "days": 3})
	if r.IsError {
		t.Fatalf("3 days: %s", resultText(r))
	}
	r = callTool(t, srv, "get_day_plan", map[string]interface{}{"date": "20/01/2025"})
	if !r.IsError {
		t.Error("expected error for bad date")
	}
	r = callTool(t, srv, "get_day_plan", map[string]interface{}{"days": 0})
	if !r.IsError {
		t.Error("expected error for zero days")
	}
}

func TestRescheduleItem(t *testing.T) {
	srv, store := testServer(t)
	id := dayPlan(t, srv).Days[0].Items[1].Item.ID

	r := callTool(t, srv, "reschedule_item", map[string]interface{}{
		"date": "2025-01-20", "item_id": id, "start": "14:30",
	})
	if r.IsError {
		t.Fatalf("reschedule: %s", resultText(r))
	}
	if got := resultText(r); got != "rescheduled: 2025-01-20.md 14:30 - 15:30 Review" {
		t.Errorf("result = %q", got)
	}
	data, _ := store.Read("2025-01-20.md")
	if !strings.Contains(string(data), "- [ ] 14:30 - 15:30 Review\n\t- bring the numbers\n") {
		t.Errorf("note = %s", data)
	}

	// The write invalidated the plan, so the old id is gone.
	r = callTool(t, srv, "reschedule_item", map[string]interface{}{
		"date": "2025-01-20", "item_id": id, "end": "16:00",
	})
	if !r.IsError {
		t.Error("expected error for stale id")
	}
}

func TestRescheduleItem_BadArguments(t *testing.T) {
	srv, _ := testServer(t)
	id := dayPlan(t, srv).Days[0].Items[1].Item.ID

	cases := []map[string]interface{}{
		{"date": "2025-01-20", "item_id": id},
		{"date": "2025-01-20", "item_id": id, "start": "10:00", "end": "11:00"},
		{"date": "2025-01-20", "item_id": id, "start": "noon"},
		{"date": "2025-01-20", "item_id": id, "end": "10:00"},
		{"item_id": id, "start": "10:00"},
	}
	for _, args := range cases {
		if r := callTool(t, srv, "reschedule_item", args); !r.IsError {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestSearchTasks(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "search_tasks", map[string]interface{}{"query": "numbers"})
	if r.IsError {
		t.Fatalf("search: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "bring the numbers") {
		t.Errorf("search result = %s", resultText(r))
	}

	r = callTool(t, srv, "search_tasks", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without query")
	}
}

func TestReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "2025-01-20.md"})
	if resultText(r) != dailyNote {
		t.Errorf("read result = %q", resultText(r))
	}

	r = callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestPlannerHeading(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "get_planner_heading", nil)
	if resultText(r) != "# Day planner\n\n- \n" {
		t.Errorf("heading = %q", resultText(r))
	}

	r = callTool(t, srv, "insert_planner_heading", map[string]interface{}{"date": "2025-01-20"})
	if r.IsError {
		t.Fatalf("insert: %s", resultText(r))
	}
	data, _ := store.Read("2025-01-20.md")
	if !strings.HasSuffix(string(data), "\n\n# Day planner\n\n- \n") {
		t.Errorf("note = %q", data)
	}

	r = callTool(t, srv, "insert_planner_heading", map[string]interface{}{"date": "2025-01-20"})
	if !r.IsError {
		t.Error("expected error for second insert")
	}
}

func TestTimeFormatContract(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_time_format_contract", nil)
	if !strings.Contains(resultText(r), "⏳ YYYY-MM-DD") {
		t.Error("contract should describe scheduled markers")
	}

	contents, err := srv.readTimeFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != "dayplanner://time-format" || tc.Text != TimeFormatContract {
		t.Errorf("resource = %+v", contents[0])
	}
}
