package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/dayplanner/internal/schedule"
)

// RouterConfig carries the non-service inputs of the router.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// VisibleDays is the window returned by GET /days without a count.
	VisibleDays int
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *schedule.Service, board *schedule.Board, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, board, cfg.VisibleDays)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	// Layout.
	r.Get("/days", h.Days)
	r.Post("/days/{date}/heading", h.InsertHeading)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)
	r.Get("/heading", h.Heading)

	// Gestures.
	r.Post("/gestures", h.StartGesture)
	r.Get("/gestures/{id}", h.GetGesture)
	r.Put("/gestures/{id}/cursor", h.MoveCursor)
	r.Post("/gestures/{id}/confirm", h.ConfirmGesture)
	r.Delete("/gestures/{id}", h.CancelGesture)

	// Notes and search.
	r.Get("/notes/*", h.GetNote)
	r.Get("/search", h.Search)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
