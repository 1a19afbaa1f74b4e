package noteservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/capture"
	"github.com/starford/maelstrom/internal/citation"
	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/models"
	"github.com/starford/maelstrom/internal/sse"
	"github.com/starford/maelstrom/internal/store"
)

// Publisher receives change notifications. *sse.Broker satisfies it.
type Publisher interface {
	PublishChange(kind, userID, id string)
}

// Generator produces undercurrents. *insight.Generator satisfies it.
type Generator interface {
	Generate(ctx context.Context, userID string, tf insight.Timeframe) (*models.Undercurrent, error)
}

// MissingNotesMessage is returned when none of the cited notes still exist.
const MissingNotesMessage = "These notes no longer exist."

// Rendered is an undercurrent with its texts split into citation segments.
type Rendered struct {
	models.Undercurrent
	Rendered citation.Insight `json:"rendered"`
}

// Service coordinates the store, the generator and change notifications.
type Service struct {
	db     store.Store
	gen    Generator
	pub    Publisher
	logger *slog.Logger
}

// NewService creates a new service. pub and logger may be nil.
func NewService(db store.Store, gen Generator, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{db: db, gen: gen, pub: pub, logger: logger}
}

func (s *Service) publish(kind, userID, id string) {
	if s.pub != nil {
		s.pub.PublishChange(kind, userID, id)
	}
}

// CreateNote validates content and stores it for userID.
func (s *Service) CreateNote(ctx context.Context, userID, content string) (*models.Note, error) {
	content, err := capture.Normalize(content)
	if err != nil {
		return nil, err
	}
	n, err := s.db.InsertNote(ctx, userID, content)
	if err != nil {
		return nil, err
	}
	s.publish(sse.NoteCreated, userID, n.ID)
	return n, nil
}

// InsertNote lets the service act as a capture.NoteWriter for in-process callers.
func (s *Service) InsertNote(ctx context.Context, userID, content string) error {
	_, err := s.CreateNote(ctx, userID, content)
	return err
}

// ListNotes returns the user's notes newest first.
func (s *Service) ListNotes(ctx context.Context, userID string, since time.Time, limit int) ([]models.Note, error) {
	notes, err := s.db.ListNotes(ctx, userID, since, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(notes), nil
}

// NotesByIDs returns the user's notes among ids in the given order. When none
// of them exist it returns apperr.ErrNotesGone.
func (s *Service) NotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error) {
	notes, err := s.db.NotesByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, apperr.ErrNotesGone
	}
	return notes, nil
}

// DeleteNote removes one of the user's notes.
func (s *Service) DeleteNote(ctx context.Context, userID, id string) error {
	if err := s.db.DeleteNote(ctx, userID, id); err != nil {
		return err
	}
	s.publish(sse.NoteDeleted, userID, id)
	return nil
}

// SearchNotes delegates full-text search to the store.
func (s *Service) SearchNotes(ctx context.Context, userID, query string, limit int) ([]store.SearchResult, error) {
	res, err := s.db.SearchNotes(ctx, userID, query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Generate produces a new undercurrent from the user's notes within tf.
func (s *Service) Generate(ctx context.Context, userID string, tf insight.Timeframe) (*models.Undercurrent, error) {
	u, err := s.gen.Generate(ctx, userID, tf)
	if err != nil {
		if !insight.IsInsufficientData(err) {
			s.logger.Error("generate undercurrent", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
		return nil, err
	}
	s.publish(sse.UndercurrentCreated, userID, u.ID)
	return u, nil
}

// ListUndercurrents returns the user's undercurrents newest first.
func (s *Service) ListUndercurrents(ctx context.Context, userID string) ([]models.Undercurrent, error) {
	list, err := s.db.ListUndercurrents(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(list), nil
}

// GetUndercurrent returns one of the user's undercurrents.
func (s *Service) GetUndercurrent(ctx context.Context, userID, id string) (*models.Undercurrent, error) {
	return s.db.GetUndercurrent(ctx, userID, id)
}

// DeleteUndercurrent removes one of the user's undercurrents.
func (s *Service) DeleteUndercurrent(ctx context.Context, userID, id string) error {
	if err := s.db.DeleteUndercurrent(ctx, userID, id); err != nil {
		return err
	}
	s.publish(sse.UndercurrentDeleted, userID, id)
	return nil
}

// RenderUndercurrent returns the undercurrent with its summary and questions
// split into text and citation segments.
func (s *Service) RenderUndercurrent(ctx context.Context, userID, id string) (*Rendered, error) {
	u, err := s.db.GetUndercurrent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &Rendered{Undercurrent: *u, Rendered: citation.RenderInsight(*u, nil)}, nil
}

// CitedNotes resolves citation n of the undercurrent's summary, or of question
// q (1-based) when q > 0, to the notes it refers to.
func (s *Service) CitedNotes(ctx context.Context, userID, id string, q, n int) ([]models.Note, error) {
	u, err := s.db.GetUndercurrent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var ids []string
	activate := func(noteIDs []string) { ids = noteIDs }

	r := citation.RenderInsight(*u, activate)
	segments := r.Summary
	if q > 0 {
		if q > len(r.Questions) {
			return nil, fmt.Errorf("%w: question %d", apperr.ErrNotFound, q)
		}
		segments = r.Questions[q-1]
	}
	seg, ok := citation.Find(segments, n)
	if !ok {
		return nil, fmt.Errorf("%w: citation %d", apperr.ErrNotFound, n)
	}
	seg.Activate()
	return s.NotesByIDs(ctx, userID, ids)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
