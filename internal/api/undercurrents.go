package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/maelstrom/internal/insight"
)

// GenerateUndercurrent handles POST /api/undercurrents/generate.
//
// Too few notes is not an error for the caller: the response is 200 with a
// message to display. Model or storage failures are reported as 502.
//
//	@Summary		Generate an undercurrent from recent notes
//	@Tags			undercurrents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GenerateRequest	false	"Timeframe"
//	@Success		201		{object}	Undercurrent
//	@Success		200		{object}	MessageResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undercurrents/generate [post]
func (h *Handler) GenerateUndercurrent(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	// An empty body selects the default timeframe.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	u, err := h.svc.Generate(r.Context(), user(r), insight.ParseTimeframe(req.Timeframe))
	if err != nil {
		if insight.IsInsufficientData(err) {
			writeJSON(w, http.StatusOK, MessageResponse{Message: insight.InsufficientDataMessage})
			return
		}
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// ListUndercurrents handles GET /api/undercurrents.
//
//	@Summary		List undercurrents, newest first
//	@Tags			undercurrents
//	@Produce		json
//	@Success		200	{object}	UndercurrentListResponse
//	@Security		BearerAuth
//	@Router			/undercurrents [get]
func (h *Handler) ListUndercurrents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListUndercurrents(r.Context(), user(r))
	if err != nil {
		fail(w, "list undercurrents", err)
		return
	}
	writeJSON(w, http.StatusOK, UndercurrentListResponse{Undercurrents: list})
}

// GetUndercurrent handles GET /api/undercurrents/{id}.
//
//	@Summary		Get an undercurrent
//	@Tags			undercurrents
//	@Produce		json
//	@Param			id	path		string	true	"Undercurrent id"
//	@Success		200	{object}	Undercurrent
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undercurrents/{id} [get]
func (h *Handler) GetUndercurrent(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUndercurrent(r.Context(), user(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "get undercurrent", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// RenderUndercurrent handles GET /api/undercurrents/{id}/rendered.
//
//	@Summary		Get an undercurrent with citation segments
//	@Tags			undercurrents
//	@Produce		json
//	@Param			id	path		string	true	"Undercurrent id"
//	@Success		200	{object}	RenderedUndercurrent
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undercurrents/{id}/rendered [get]
func (h *Handler) RenderUndercurrent(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RenderUndercurrent(r.Context(), user(r), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, "render undercurrent", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteUndercurrent handles DELETE /api/undercurrents/{id}.
//
//	@Summary		Delete an undercurrent
//	@Tags			undercurrents
//	@Param			id	path	string	true	"Undercurrent id"
//	@Success		204	"Undercurrent deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undercurrents/{id} [delete]
func (h *Handler) DeleteUndercurrent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteUndercurrent(r.Context(), user(r), id); err != nil {
		fail(w, "delete undercurrent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
