package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func user(r *http.Request) string {
	id, _ := UserFrom(r.Context())
	return id
}

// fail maps domain errors onto HTTP responses. Unknown errors are logged and
// reported as internal.
func fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidNote):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotesGone):
		writeJSON(w, http.StatusNotFound, errorBody(noteservice.MissingNotesMessage))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Me handles GET /api/me.
//
//	@Summary		Identify the acting user
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	MeResponse
//	@Failure		401	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := UserFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{UserID: id})
}

// ListNotes handles GET /api/notes.
//
// With ids the listed notes are returned in that order; with q a full-text
// search runs instead; otherwise the newest notes are listed.
//
//	@Summary		List, fetch or search notes
//	@Tags			notes
//	@Produce		json
//	@Param			since	query		string	false	"RFC 3339 lower bound on created_at"
//	@Param			limit	query		int		false	"Max results"
//	@Param			ids		query		string	false	"Comma-separated note ids"
//	@Param			q		query		string	false	"Search query"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	if raw := q.Get("ids"); raw != "" {
		notes, err := h.svc.NotesByIDs(r.Context(), user(r), splitIDs(raw))
		if err != nil {
			fail(w, "notes by ids", err)
			return
		}
		writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
		return
	}

	if query := q.Get("q"); query != "" {
		results, err := h.svc.SearchNotes(r.Context(), user(r), query, limit)
		if err != nil {
			slog.Error("search failed", slog.String("query", query), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		writeJSON(w, http.StatusOK, SearchResponse{Results: results})
		return
	}

	var since time.Time
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be an RFC 3339 timestamp"))
			return
		}
		since = t
	}
	notes, err := h.svc.ListNotes(r.Context(), user(r), since, limit)
	if err != nil {
		fail(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Capture a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), user(r), req.Content)
	if err != nil {
		fail(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), user(r), id); err != nil {
		fail(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
