package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dayplanner/internal/schedule"
	"github.com/starford/dayplanner/internal/timeline"
	"github.com/starford/dayplanner/internal/timeutil"
)

const (
	defaultVisibleDays = 3
	maxVisibleDays     = 31
	maxBodyBytes       = 1 << 20
)

// Handler holds API route handlers.
type Handler struct {
	svc         *schedule.Service
	board       *schedule.Board
	visibleDays int
}

// NewHandler creates a new Handler.
func NewHandler(svc *schedule.Service, board *schedule.Board, visibleDays int) *Handler {
	if visibleDays <= 0 {
		visibleDays = defaultVisibleDays
	}
	return &Handler{svc: svc, board: board, visibleDays: visibleDays}
}

func parseDay(key string) (time.Time, bool) {
	day, err := timeutil.ParseDayKey(key, time.Local)
	return day, err == nil
}

// Days handles GET /api/days.
//
//	@Summary		Layout of the visible days
//	@Tags			days
//	@Produce		json
//	@Param			start	query		string	false	"First day (YYYY-MM-DD), defaults to today"
//	@Param			count	query		int		false	"Number of days"
//	@Success		200		{object}	DaysResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days [get]
func (h *Handler) Days(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := h.board.Now()
	if s := q.Get("start"); s != "" {
		day, ok := parseDay(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("start must be YYYY-MM-DD"))
			return
		}
		start = day
	}

	count := h.visibleDays
	if c := q.Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil || n < 1 || n > maxVisibleDays {
			writeJSON(w, http.StatusBadRequest, errorBody("count must be between 1 and 31"))
			return
		}
		count = n
	}

	view, err := h.board.Layout(r.Context(), timeutil.Days(start, count))
	if err != nil {
		writeError(w, "layout", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// InsertHeading handles POST /api/days/{date}/heading.
//
//	@Summary		Add the planner heading to a day's note
//	@Tags			days
//	@Produce		json
//	@Param			date	path		string	true	"Day (YYYY-MM-DD)"
//	@Success		201		{object}	InsertHeadingResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/days/{date}/heading [post]
func (h *Handler) InsertHeading(w http.ResponseWriter, r *http.Request) {
	day, ok := parseDay(chi.URLParam(r, "date"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}
	path, err := h.svc.InsertHeading(r.Context(), day, h.board.Settings())
	if err != nil {
		writeError(w, "insert heading", err)
		return
	}
	writeJSON(w, http.StatusCreated, InsertHeadingResponse{Path: path})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Current display settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsDTO
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.board.Settings())
}

// PutSettings handles PUT /api/settings.
//
//	@Summary		Replace the display settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsDTO	true	"New settings"
//	@Success		200		{object}	SettingsDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	// Omitted fields keep their current value.
	s := h.board.Settings()
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.board.SetSettings(s); err != nil {
		writeError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Heading handles GET /api/heading.
//
//	@Summary		Markdown snippet that starts a plan
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	HeadingResponse
//	@Security		BearerAuth
//	@Router			/heading [get]
func (h *Handler) Heading(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HeadingResponse{Markdown: timeline.HeadingMarkdown(h.board.Settings())})
}

// StartGesture handles POST /api/gestures.
//
//	@Summary		Begin moving or resizing a plan item
//	@Tags			gestures
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StartGestureRequest	true	"Gesture"
//	@Success		201		{object}	GestureResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gestures [post]
func (h *Handler) StartGesture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req StartGestureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	day, _ := parseDay(req.Day)

	st, err := h.board.Start(r.Context(), day, req.ItemID, schedule.GestureKind(req.Kind), req.CursorY)
	if err != nil {
		writeError(w, "start gesture", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// GetGesture handles GET /api/gestures/{id}.
//
//	@Summary		State of an in-flight gesture
//	@Tags			gestures
//	@Produce		json
//	@Param			id	path		string	true	"Gesture id"
//	@Success		200	{object}	GestureResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gestures/{id} [get]
func (h *Handler) GetGesture(w http.ResponseWriter, r *http.Request) {
	st, err := h.board.Gesture(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get gesture", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// MoveCursor handles PUT /api/gestures/{id}/cursor.
//
//	@Summary		Move the pointer of a gesture
//	@Tags			gestures
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Gesture id"
//	@Param			body	body		CursorRequest	true	"Pointer offset"
//	@Success		200		{object}	GestureResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gestures/{id}/cursor [put]
func (h *Handler) MoveCursor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	st, err := h.board.Cursor(chi.URLParam(r, "id"), req.OffsetY)
	if err != nil {
		writeError(w, "move cursor", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ConfirmGesture handles POST /api/gestures/{id}/confirm.
//
//	@Summary		Commit a gesture and write it into the note
//	@Tags			gestures
//	@Produce		json
//	@Param			id	path		string	true	"Gesture id"
//	@Success		200	{object}	ConfirmResponse
//	@Failure		404	{object}	errResponse
//	@Failure		412	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gestures/{id}/confirm [post]
func (h *Handler) ConfirmGesture(w http.ResponseWriter, r *http.Request) {
	req, err := h.board.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "confirm gesture", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CancelGesture handles DELETE /api/gestures/{id}.
//
//	@Summary		Abandon a gesture
//	@Tags			gestures
//	@Param			id	path	string	true	"Gesture id"
//	@Success		204	"Gesture cancelled"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gestures/{id} [delete]
func (h *Handler) CancelGesture(w http.ResponseWriter, r *http.Request) {
	if err := h.board.Cancel(chi.URLParam(r, "id")); err != nil {
		writeError(w, "cancel gesture", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. projects%2Fship.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.Note(r.Context(), path)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Search handles GET /api/search.
//
//	@Summary		Find list items by text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
