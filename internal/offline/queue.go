// Package offline keeps notes that could not reach the remote store in a
// durable local queue until a sync pass delivers them.
package offline

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/maelstrom/internal/connectivity"
	"github.com/starford/maelstrom/internal/models"
)

// IDPrefix marks locally generated ids. Server ids are bare UUIDs.
const IDPrefix = "offline_"

// Queue is the durable pending-note queue.
//
// Every operation is a read-modify-write of the whole snapshot held by the
// Storage, serialised by mu and, when the Storage is a Locker, by its
// cross-process lock. Storage failures never escape: reads degrade to an
// empty queue and writes are logged and dropped.
type Queue struct {
	mu      sync.Mutex
	storage Storage
	signal  connectivity.Signal
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator overrides id generation. Generated ids must be unique.
func WithIDGenerator(fn func() string) QueueOption {
	return func(q *Queue) { q.newID = fn }
}

// WithLogger sets the logger used for swallowed storage failures.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// NewQueue returns a Queue over storage. signal answers IsOnline.
func NewQueue(storage Storage, signal connectivity.Signal, opts ...QueueOption) *Queue {
	q := &Queue{
		storage: storage,
		signal:  signal,
		now:     time.Now,
		newID:   NewID,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewID returns a fresh offline id.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// IsOffline reports whether id was generated locally.
func IsOffline(id string) bool {
	return strings.HasPrefix(id, IDPrefix) && len(id) > len(IDPrefix)
}

// IsOnline reports reachability as seen by the connectivity signal.
func (q *Queue) IsOnline() bool {
	return q.signal.Online()
}

// SaveOffline appends a new pending note and returns it. The note is returned
// even when it could not be persisted.
func (q *Queue) SaveOffline(content, userID string) models.PendingNote {
	note := models.PendingNote{
		ID:        q.newID(),
		Content:   content,
		CreatedAt: q.now().UTC(),
		UserID:    userID,
	}

	defer q.lock()()

	notes := appendNote(q.load(), note)
	if err := q.store(notes); err != nil {
		q.logger.Warn("offline: note not persisted",
			slog.String("id", note.ID),
			slog.String("error", err.Error()))
	}
	return note
}

// ListPending returns queued notes in insertion order.
func (q *Queue) ListPending() []models.PendingNote {
	defer q.lock()()
	return q.load()
}

// ClearPending removes the note with id, if present.
func (q *Queue) ClearPending(id string) {
	defer q.lock()()

	notes := q.load()
	kept := without(notes, id)
	if len(kept) == len(notes) {
		return
	}
	if err := q.store(kept); err != nil {
		q.logger.Warn("offline: clear failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// ClearAll empties the queue.
func (q *Queue) ClearAll() {
	defer q.lock()()
	if err := q.storage.Remove(); err != nil {
		q.logger.Warn("offline: clear all failed", slog.String("error", err.Error()))
	}
}

// PendingCount returns len(ListPending()).
func (q *Queue) PendingCount() int {
	return len(q.ListPending())
}

// BeginSync claims the right to run a sync pass across every process sharing
// the storage. ok is false when another pass holds it; otherwise release must
// be called when the pass ends.
func (q *Queue) BeginSync() (release func(), ok bool) {
	l, shared := q.storage.(Locker)
	if !shared {
		return func() {}, true
	}
	release, err := l.TrySyncLock()
	if errors.Is(err, ErrLocked) {
		return nil, false
	}
	if err != nil {
		q.logger.Warn("offline: sync lock unavailable", slog.String("error", err.Error()))
		return func() {}, true
	}
	return release, true
}

// lock takes mu and the storage lock and returns the func releasing both.
// A storage lock that cannot be taken is logged and the operation goes ahead.
func (q *Queue) lock() func() {
	q.mu.Lock()
	l, shared := q.storage.(Locker)
	if !shared {
		return q.mu.Unlock
	}
	release, err := l.Lock()
	if err != nil {
		q.logger.Warn("offline: queue lock unavailable", slog.String("error", err.Error()))
		return q.mu.Unlock
	}
	return func() {
		release()
		q.mu.Unlock()
	}
}

func (q *Queue) load() []models.PendingNote {
	data, err := q.storage.Read()
	if err != nil {
		q.logger.Warn("offline: read failed", slog.String("error", err.Error()))
		return []models.PendingNote{}
	}
	notes, err := decode(data)
	if err != nil {
		q.logger.Warn("offline: decode failed", slog.String("error", err.Error()))
		return []models.PendingNote{}
	}
	return notes
}

func (q *Queue) store(notes []models.PendingNote) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	return q.storage.Write(data)
}

// decode parses a stored snapshot. Later duplicates of an id are dropped.
func decode(data []byte) ([]models.PendingNote, error) {
	if len(data) == 0 {
		return []models.PendingNote{}, nil
	}
	var raw []models.PendingNote
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]models.PendingNote, 0, len(raw))
	for _, n := range raw {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func appendNote(notes []models.PendingNote, n models.PendingNote) []models.PendingNote {
	for _, existing := range notes {
		if existing.ID == n.ID {
			return notes
		}
	}
	return append(notes, n)
}

func without(notes []models.PendingNote, id string) []models.PendingNote {
	out := make([]models.PendingNote, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
