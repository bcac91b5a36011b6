// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes day planner tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dayplanner/internal/apperr"
	"github.com/starford/dayplanner/internal/planner"
	"github.com/starford/dayplanner/internal/schedule"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

const (
	timeFormatURI = "dayplanner://time-format"
	maxPlanDays   = 31
)

// Server wraps the MCP server with day planner tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *schedule.Service
	board *schedule.Board
}

// New creates a new MCP server with all day planner tools registered.
func New(svc *schedule.Service, board *schedule.Board) *Server {
	s := &Server{svc: svc, board: board}

	s.mcp = server.NewMCPServer(
		"Day Planner",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_day_plan",
		mcp.WithDescription("Timed plan items of one or more consecutive days, with their timeline geometry "+
			"and any lines that failed to parse."),
		mcp.WithString("date", mcp.Description("First day as YYYY-MM-DD (defaults to today)")),
		mcp.WithNumber("days", mcp.Description("Number of consecutive days (default 1, max 31)")),
	), s.getDayPlan)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Find list items across all notes by text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 50)")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. 2025-01-20.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("reschedule_item",
		mcp.WithDescription("Move a plan item to a new start time, or change its end time, and write it back "+
			"into its note. Item ids come from get_day_plan and are valid until the notes change."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day of the item as YYYY-MM-DD")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id from get_day_plan")),
		mcp.WithString("start", mcp.Description("New start time, e.g. 13:30 (keeps the duration)")),
		mcp.WithString("end", mcp.Description("New end time, e.g. 14:15 (keeps the start)")),
	), s.rescheduleItem)

	s.mcp.AddTool(mcp.NewTool("get_planner_heading",
		mcp.WithDescription("Markdown snippet that starts a plan in a note."),
	), s.getPlannerHeading)

	s.mcp.AddTool(mcp.NewTool("insert_planner_heading",
		mcp.WithDescription("Add the planner heading to a day's daily note, creating the note if needed."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day as YYYY-MM-DD")),
	), s.insertPlannerHeading)

	s.mcp.AddTool(mcp.NewTool("get_time_format_contract",
		mcp.WithDescription("Returns how plan items are written in notes. "+
			"Call this before adding or editing timed items by hand."),
	), s.getTimeFormatContract)

	// Resource: time format contract.
	s.mcp.AddResource(
		mcp.NewResource(timeFormatURI, "Time Format Contract",
			mcp.WithResourceDescription("How timed plan items are written in Markdown notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTimeFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func parseDate(s string) (time.Time, error) {
	day, err := timeutil.ParseDayKey(s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", s)
	}
	return day, nil
}

func (s *Server) getDayPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := s.board.Now()
	if d := req.GetString("date", ""); d != "" {
		day, err := parseDate(d)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		start = day
	}
	n := req.GetInt("days", 1)
	if n < 1 || n > maxPlanDays {
		return mcp.NewToolResultError(fmt.Sprintf("days must be between 1 and %d", maxPlanDays)), nil
	}

	view, err := s.board.Layout(ctx, timeutil.Days(start, n))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(view)
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.Note(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

// clock parses a bare time such as "13:30" or "1:30pm".
func clock(s string) (int, error) {
	tok, err := planner.ParseTimeToken(s)
	if err != nil || tok.HasEnd || tok.Len != len(s) {
		return 0, fmt.Errorf("time must look like 13:30, got %q", s)
	}
	return tok.Start, nil
}

func (s *Server) rescheduleItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := parseDate(date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	startArg, endArg := req.GetString("start", ""), req.GetString("end", "")
	if (startArg == "") == (endArg == "") {
		return mcp.NewToolResultError("exactly one of start and end is required"), nil
	}

	item, err := s.svc.Item(ctx, day, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no item %s on %s", id, date)), nil
	}

	upd := timeline.UpdateRequest{}
	if startArg != "" {
		m, err := clock(startArg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		upd.Item, upd.StartMinutes = item.WithStartMinutes(m), &m
	} else {
		m, err := clock(endArg)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if m < item.StartMinutes {
			return mcp.NewToolResultError("end must not be before start"), nil
		}
		upd.Item, upd.EndMinutes = item.WithEndMinutes(m), &m
	}

	if err := s.svc.Apply(ctx, upd); err != nil {
		if errors.Is(err, apperr.ErrStale) {
			return mcp.NewToolResultError("the note changed since the plan was read; fetch it again"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("rescheduled: %s %s - %s %s",
		upd.Item.Location.Path,
		timeutil.FormatClock(upd.Item.StartMinutes),
		timeutil.FormatClock(upd.Item.EndMinutes()),
		upd.Item.FirstLineText)), nil
}

func (s *Server) getPlannerHeading(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(timeline.HeadingMarkdown(s.board.Settings())), nil
}

func (s *Server) insertPlannerHeading(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := parseDate(date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := s.svc.InsertHeading(ctx, day, s.board.Settings())
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError(fmt.Sprintf("%s already has a plan", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("inserted: %s", path)), nil
}

func (s *Server) getTimeFormatContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TimeFormatContract), nil
}

func (s *Server) readTimeFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      timeFormatURI,
			MIMEType: "text/markdown",
			Text:     TimeFormatContract,
		},
	}, nil
}
