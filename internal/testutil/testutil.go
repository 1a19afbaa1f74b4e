// Package testutil provides shared test helpers for setting up stores, queues
// and a scripted language model.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/starford/maelstrom/internal/connectivity"
	"github.com/starford/maelstrom/internal/offline"
	"github.com/starford/maelstrom/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "maelstrom-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestQueue creates a file-backed offline queue in a temporary directory
// together with the connectivity monitor driving it.
func TestQueue(t *testing.T, online bool) (*offline.Queue, *offline.FileStorage, *connectivity.Monitor) {
	t.Helper()
	fs, err := offline.NewFileStorage(t.TempDir(), offline.DefaultKey)
	if err != nil {
		t.Fatal(err)
	}
	m := connectivity.NewMonitor(online)
	return offline.NewQueue(fs, m), fs, m
}

// ScriptedLLM replies with Reply, or Err, and records prompts.
type ScriptedLLM struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Prompts []string
}

// Complete implements insight.LLM.
func (s *ScriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	return s.Reply, s.Err
}

// InsightReply builds a well-formed model reply citing notes with summary.
func InsightReply(summary string, questions ...string) string {
	q := "["
	for i, s := range questions {
		if i > 0 {
			q += ","
		}
		q += fmt.Sprintf("%q", s)
	}
	q += "]"
	return fmt.Sprintf("```json\n{\"summary_text\": %q, \"questions\": %s, \"sentiment_colors\": [\"#111111\", \"#222222\", \"#333333\", \"#444444\"]}\n```", summary, q)
}
