package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/models"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse time %q: %w", s, err)
	}
	return t, nil
}

// InsertNote stores a new note and returns it with its server id.
func (db *DB) InsertNote(ctx context.Context, userID, content string) (*models.Note, error) {
	n := models.Note{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.UserID, n.Content, formatTime(n.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("store: insert note: %w", err)
	}
	if err := ftsInsert(ctx, tx, n.ID, n.UserID, n.Content); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return &n, nil
}

// ListNotes returns the user's notes created at or after since, newest first.
// A zero since means no lower bound; limit <= 0 means no limit.
func (db *DB) ListNotes(ctx context.Context, userID string, since time.Time, limit int) ([]models.Note, error) {
	query := `SELECT id, user_id, content, created_at FROM notes WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(since))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// NotesByIDs returns the user's notes among ids, in the order of ids.
// Unknown ids are skipped.
func (db *DB) NotesByIDs(ctx context.Context, userID string, ids []string) ([]models.Note, error) {
	if len(ids) == 0 {
		return []models.Note{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM notes WHERE user_id = ? AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("store: notes by ids: %w", err)
	}
	defer rows.Close()

	found, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Note, len(found))
	for _, n := range found {
		byID[n.ID] = n
	}
	out := make([]models.Note, 0, len(found))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		n, ok := byID[id]
		if _, dup := seen[id]; !ok || dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// DeleteNote removes one of the user's notes.
func (db *DB) DeleteNote(ctx context.Context, userID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(ctx, tx, id)
	return tx.Commit()
}

func scanNotes(rows *sql.Rows) ([]models.Note, error) {
	out := []models.Note{}
	for rows.Next() {
		var n models.Note
		var created string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &created); err != nil {
			return nil, err
		}
		t, err := parseTime(created)
		if err != nil {
			return nil, err
		}
		n.CreatedAt = t
		out = append(out, n)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}
