package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/maelstrom/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced; userID is the
// identity every authorised request acts as.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token, userID string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token, userID))

	r.Get("/me", h.Me)

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Undercurrents.
	r.Post("/undercurrents/generate", h.GenerateUndercurrent)
	r.Get("/undercurrents", h.ListUndercurrents)
	r.Get("/undercurrents/{id}", h.GetUndercurrent)
	r.Get("/undercurrents/{id}/rendered", h.RenderUndercurrent)
	r.Delete("/undercurrents/{id}", h.DeleteUndercurrent)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
