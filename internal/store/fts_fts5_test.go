//go:build sqlite_fts5

package store

import (
	"context"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	n, _ := db.InsertNote(ctx, "u1", "vanishing content")
	_ = db.DeleteNote(ctx, "u1", n.ID)

	results, _ := db.SearchNotes(ctx, "u1", "vanishing", 10)
	for _, r := range results {
		if r.ID == n.ID {
			t.Error("deleted note still in FTS index")
		}
	}
}
