// Package insight generates undercurrents: a summary with citations, a few
// reflective questions and a four-colour palette, derived from a user's
// recent notes by a language model.
package insight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/models"
)

// InsufficientDataMessage is shown when there are too few notes to work with.
const InsufficientDataMessage = "Not enough turbulence yet. Keep writing."

// Repository is the slice of the remote store the generator needs.
type Repository interface {
	ListNotes(ctx context.Context, userID string, since time.Time, limit int) ([]models.Note, error)
	InsertUndercurrent(ctx context.Context, u models.Undercurrent) (*models.Undercurrent, error)
}

// LLM completes a prompt.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config bounds the note batch.
type Config struct {
	MinNotes int
	MaxNotes int
}

// Generator produces and persists undercurrents.
type Generator struct {
	repo   Repository
	llm    LLM
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewGenerator creates a Generator. Zero Config fields fall back to 3 and 20.
func NewGenerator(repo Repository, llm LLM, cfg Config, logger *slog.Logger) *Generator {
	if cfg.MinNotes <= 0 {
		cfg.MinNotes = 3
	}
	if cfg.MaxNotes < cfg.MinNotes {
		cfg.MaxNotes = max(20, cfg.MinNotes)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{repo: repo, llm: llm, cfg: cfg, now: time.Now, logger: logger}
}

// Generate builds an undercurrent from the user's notes within tf.
//
// Too few notes yields an error wrapping apperr.ErrInsufficientData. Any other
// error is a hard failure whose message is meant for display.
func (g *Generator) Generate(ctx context.Context, userID string, tf Timeframe) (*models.Undercurrent, error) {
	notes, err := g.repo.ListNotes(ctx, userID, tf.Cutoff(g.now()), g.cfg.MaxNotes)
	if err != nil {
		return nil, fmt.Errorf("insight: load notes: %w", err)
	}
	if len(notes) < g.cfg.MinNotes {
		return nil, fmt.Errorf("%w: %s", apperr.ErrInsufficientData, InsufficientDataMessage)
	}

	g.logger.Info("generating undercurrent",
		slog.String("user_id", userID),
		slog.String("timeframe", string(tf)),
		slog.Int("notes", len(notes)))

	raw, err := g.llm.Complete(ctx, BuildPrompt(notes))
	if err != nil {
		return nil, fmt.Errorf("insight: model call: %w", err)
	}
	out, err := ParseOutput(raw)
	if err != nil {
		g.logger.Error("model output rejected", slog.String("error", err.Error()))
		return nil, err
	}

	ids := make([]string, len(notes))
	for i, n := range notes {
		ids[i] = n.ID
	}

	u, err := g.repo.InsertUndercurrent(ctx, models.Undercurrent{
		UserID:          userID,
		SummaryText:     out.SummaryText,
		Questions:       out.Questions,
		NotesIncluded:   ids,
		SentimentColors: out.SentimentColors,
	})
	if err != nil {
		return nil, fmt.Errorf("insight: save undercurrent: %w", err)
	}
	return u, nil
}

// IsInsufficientData reports whether err is the soft "not enough notes" failure.
func IsInsufficientData(err error) bool {
	return errors.Is(err, apperr.ErrInsufficientData)
}

// BuildPrompt numbers notes from 1 in batch order, the numbering citation
// markers in the response refer to.
func BuildPrompt(notes []models.Note) string {
	var b strings.Builder
	b.WriteString("Observe the following short personal notes and describe the patterns, themes or emotional currents that emerge, without forcing connections.\n\nNotes:\n")
	for i, n := range notes {
		fmt.Fprintf(&b, "Note %d (ID: %s): %q\n", i+1, n.ID, n.Content)
	}
	b.WriteString(`
Return only a JSON object:
{"summary_text": "...", "questions": ["...", "...", "..."], "sentiment_colors": ["#hex1", "#hex2", "#hex3", "#hex4"]}

summary_text cites notes inline by number, e.g. [1] or [1, 3], placed after punctuation.
sentiment_colors holds exactly four distinct hex colours.
`)
	return b.String()
}
