package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/models"
)

const undercurrentColumns = `id, user_id, summary_text, questions, notes_included, sentiment_colors, created_at`

// InsertUndercurrent stores u under a new server id. ID and CreatedAt on u
// are ignored.
func (db *DB) InsertUndercurrent(ctx context.Context, u models.Undercurrent) (*models.Undercurrent, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	if u.Questions == nil {
		u.Questions = []string{}
	}
	if u.NotesIncluded == nil {
		u.NotesIncluded = []string{}
	}
	if u.SentimentColors == nil {
		u.SentimentColors = []string{}
	}

	questions, _ := json.Marshal(u.Questions)
	included, _ := json.Marshal(u.NotesIncluded)
	colors, _ := json.Marshal(u.SentimentColors)

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO undercurrents (`+undercurrentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.UserID, u.SummaryText, string(questions), string(included), string(colors), formatTime(u.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("store: insert undercurrent: %w", err)
	}
	return &u, nil
}

// ListUndercurrents returns the user's undercurrents, newest first.
func (db *DB) ListUndercurrents(ctx context.Context, userID string) ([]models.Undercurrent, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+undercurrentColumns+` FROM undercurrents WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("store: list undercurrents: %w", err)
	}
	defer rows.Close()

	out := []models.Undercurrent{}
	for rows.Next() {
		u, err := scanUndercurrent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// GetUndercurrent returns one of the user's undercurrents.
func (db *DB) GetUndercurrent(ctx context.Context, userID, id string) (*models.Undercurrent, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+undercurrentColumns+` FROM undercurrents WHERE id = ? AND user_id = ?`, id, userID)
	u, err := scanUndercurrent(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// DeleteUndercurrent removes one of the user's undercurrents.
func (db *DB) DeleteUndercurrent(ctx context.Context, userID, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM undercurrents WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete undercurrent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUndercurrent(s scanner) (*models.Undercurrent, error) {
	var u models.Undercurrent
	var questions, included, colors, created string
	if err := s.Scan(&u.ID, &u.UserID, &u.SummaryText, &questions, &included, &colors, &created); err != nil {
		return nil, err
	}
	if err := decodeList(questions, &u.Questions); err != nil {
		return nil, err
	}
	if err := decodeList(included, &u.NotesIncluded); err != nil {
		return nil, err
	}
	if err := decodeList(colors, &u.SentimentColors); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

func decodeList(raw string, dst *[]string) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("store: decode list: %w", err)
	}
	if *dst == nil {
		*dst = []string{}
	}
	return nil
}

var _ scanner = (*sql.Row)(nil)
