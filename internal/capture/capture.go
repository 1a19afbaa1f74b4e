// Package capture implements note submission with offline fallback and the
// sync pass that delivers queued notes once connectivity returns.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/connectivity"
	"github.com/starford/maelstrom/internal/models"
	"github.com/starford/maelstrom/internal/offline"
)

// NoteWriter persists a note remotely.
type NoteWriter interface {
	InsertNote(ctx context.Context, userID, content string) error
}

// Identity resolves the authenticated user.
// It returns apperr.ErrUnauthenticated when nobody is signed in.
type Identity interface {
	CurrentUser(ctx context.Context) (string, error)
}

// Result describes where a submitted note ended up.
type Result struct {
	Queued  bool                `json:"queued"`
	Pending *models.PendingNote `json:"pending,omitempty"`
}

// SyncReport summarises one sync pass.
type SyncReport struct {
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	Skipped bool `json:"skipped"`
}

// Capturer drives the offline queue on behalf of the note-capture surface.
type Capturer struct {
	queue    *offline.Queue
	writer   NoteWriter
	identity Identity
	signal   connectivity.Signal
	logger   *slog.Logger

	syncing atomic.Bool
}

// New creates a Capturer.
func New(queue *offline.Queue, writer NoteWriter, identity Identity, signal connectivity.Signal, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Capturer{
		queue:    queue,
		writer:   writer,
		identity: identity,
		signal:   signal,
		logger:   logger,
	}
}

// Normalize trims raw and checks its length bounds.
func Normalize(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	err := validation.Validate(content,
		validation.Required,
		validation.RuneLength(1, models.MaxNoteLength),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidNote, err.Error())
	}
	return content, nil
}

// Submit captures raw. Offline, the note goes straight to the queue. Online,
// one remote write is attempted and any failure queues the note instead. The
// only error is apperr.ErrInvalidNote for empty or oversized input.
func (c *Capturer) Submit(ctx context.Context, raw string) (Result, error) {
	content, err := Normalize(raw)
	if err != nil {
		return Result{}, err
	}

	if !c.signal.Online() {
		p := c.queue.SaveOffline(content, "")
		c.logger.Info("offline: note queued", slog.String("id", p.ID))
		return Result{Queued: true, Pending: &p}, nil
	}

	userID, err := c.identity.CurrentUser(ctx)
	if err == nil {
		err = c.writer.InsertNote(ctx, userID, content)
		if err == nil {
			return Result{}, nil
		}
	}

	c.logger.Warn("note not saved, queued offline", slog.String("error", err.Error()))
	p := c.queue.SaveOffline(content, userID)
	return Result{Queued: true, Pending: &p}, nil
}

// Sync delivers pending notes one at a time and removes each only after the
// remote store confirmed it. It is a no-op while offline, while another pass
// is running in this or any other process sharing the queue, or when no user
// is signed in.
func (c *Capturer) Sync(ctx context.Context) SyncReport {
	if !c.signal.Online() {
		return SyncReport{Skipped: true}
	}
	if !c.syncing.CompareAndSwap(false, true) {
		c.logger.Debug("sync: pass already in flight")
		return SyncReport{Skipped: true}
	}
	defer c.syncing.Store(false)

	release, ok := c.queue.BeginSync()
	if !ok {
		c.logger.Debug("sync: pass running in another process")
		return SyncReport{Skipped: true}
	}
	defer release()

	pending := c.queue.ListPending()
	if len(pending) == 0 {
		return SyncReport{}
	}

	userID, err := c.identity.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, apperr.ErrUnauthenticated) {
			c.logger.Warn("sync: identity unavailable", slog.String("error", err.Error()))
		}
		return SyncReport{Skipped: true}
	}

	var report SyncReport
	for i, p := range pending {
		if ctx.Err() != nil {
			report.Failed += len(pending) - i
			break
		}
		if err := c.writer.InsertNote(ctx, userID, p.Content); err != nil {
			c.logger.Error("sync: note failed", slog.String("id", p.ID), slog.String("error", err.Error()))
			report.Failed++
			continue
		}
		c.queue.ClearPending(p.ID)
		report.Synced++
	}

	c.logger.Info("sync: pass finished",
		slog.Int("synced", report.Synced),
		slog.Int("failed", report.Failed))
	return report
}

// Run syncs once immediately and again on every offline→online transition
// until ctx is cancelled.
func (c *Capturer) Run(ctx context.Context) error {
	regained := make(chan struct{}, 1)
	unsubscribe := c.signal.Subscribe(func(online bool) {
		if !online {
			return
		}
		select {
		case regained <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	c.Sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-regained:
			c.Sync(ctx)
		}
	}
}
