package store

import (
	"context"
	"time"

	"github.com/starford/maelstrom/internal/models"
)

// Store defines the remote store operations.
// Every operation is scoped to the owning user.
type Store interface {
	InsertNote(ctx context.Context, userID, content string) (*models.Note, error)
	ListNotes(ctx context.Context, userID string, since time.Time, limit int) ([]models.Note, error)
	NotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error)
	DeleteNote(ctx context.Context, userID, id string) error
	SearchNotes(ctx context.Context, userID, query string, limit int) ([]SearchResult, error)

	InsertUndercurrent(ctx context.Context, u models.Undercurrent) (*models.Undercurrent, error)
	ListUndercurrents(ctx context.Context, userID string) ([]models.Undercurrent, error)
	GetUndercurrent(ctx context.Context, userID, id string) (*models.Undercurrent, error)
	DeleteUndercurrent(ctx context.Context, userID, id string) error

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// SearchResult is one search hit.
type SearchResult struct {
	ID      string    `json:"id"`
	Snippet string    `json:"snippet"`
	Created time.Time `json:"created_at"`
}
