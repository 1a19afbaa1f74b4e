// Package models defines the domain types for Maelstrom.
package models

import "time"

// MaxNoteLength is the upper bound, in runes, of a note's content.
const MaxNoteLength = 280

// Note is a note persisted in the remote store.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingNote is a note captured locally that has not been confirmed by the
// remote store yet. ID carries the offline prefix and never collides with
// server-assigned ids.
type PendingNote struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
}

// Undercurrent is a generated insight over a batch of notes.
type Undercurrent struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	SummaryText     string    `json:"summary_text"`
	Questions       []string  `json:"questions"`
	NotesIncluded   []string  `json:"notes_included"` // position k is citation marker k+1
	SentimentColors []string  `json:"sentiment_colors"`
	CreatedAt       time.Time `json:"created_at"`
}
