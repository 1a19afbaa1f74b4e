package api

import (
	"github.com/starford/maelstrom/internal/models"
	"github.com/starford/maelstrom/internal/noteservice"
	"github.com/starford/maelstrom/internal/store"
)

// MeResponse identifies the acting user.
type MeResponse struct {
	UserID string `json:"user_id" example:"local" validate:"required"`
}

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content string `json:"content" example:"The tide came in twice today." validate:"required"`
}

// Note is a stored note (aliased from the domain layer).
type Note = models.Note

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []Note `json:"notes" validate:"required"`
}

// SearchResult is a single search hit (aliased from the store).
type SearchResult = store.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GenerateRequest is the request body for generating an undercurrent.
type GenerateRequest struct {
	Timeframe string `json:"timeframe" example:"week" enums:"24h,week,month,all"`
}

// MessageResponse carries a soft failure meant for display.
type MessageResponse struct {
	Message string `json:"message" example:"Not enough turbulence yet. Keep writing." validate:"required"`
}

// Undercurrent is a generated insight (aliased from the domain layer).
type Undercurrent = models.Undercurrent

// UndercurrentListResponse wraps undercurrent listings.
type UndercurrentListResponse struct {
	Undercurrents []Undercurrent `json:"undercurrents" validate:"required"`
}

// RenderedUndercurrent is an undercurrent with citation segments.
type RenderedUndercurrent = noteservice.Rendered
