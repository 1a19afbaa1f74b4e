package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/starford/maelstrom/internal/capture"
	"github.com/starford/maelstrom/internal/connectivity"
	"github.com/starford/maelstrom/internal/offline"
	"github.com/starford/maelstrom/internal/remote"
)

// Client is the capture side of the app: the offline queue, the connectivity
// monitor and the remote API it syncs to.
type Client struct {
	Remote   *remote.Client
	Queue    *offline.Queue
	Storage  *offline.FileStorage
	Monitor  *connectivity.Monitor
	Prober   *connectivity.Prober
	Capturer *capture.Capturer

	logger *slog.Logger
}

// NewClientLogger returns the text logger used by client commands.
func NewClientLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewClient wires the client from cfg. The monitor starts offline until the
// first probe.
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	if err := os.MkdirAll(cfg.Client.QueueDir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	fs, err := offline.NewFileStorage(cfg.Client.QueueDir, offline.DefaultKey)
	if err != nil {
		return nil, fmt.Errorf("init queue storage: %w", err)
	}

	monitor := connectivity.NewMonitor(false)
	rc := remote.New(cfg.Client.ServerURL, cfg.Client.Token)
	queue := offline.NewQueue(fs, monitor, offline.WithLogger(logger))

	return &Client{
		Remote:   rc,
		Queue:    queue,
		Storage:  fs,
		Monitor:  monitor,
		Prober:   connectivity.NewProber(cfg.Client.ServerURL+"/health/live", cfg.Client.ProbeInterval, monitor, logger),
		Capturer: capture.New(queue, rc, rc, monitor, logger),
		logger:   logger,
	}, nil
}

// Watch keeps the client running until SIGINT/SIGTERM or ctx is done: it
// probes connectivity, syncs on every reconnect and reports the pending count
// to onCount whenever the queue file changes.
func (c *Client) Watch(ctx context.Context, onCount func(pending int)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Settle connectivity before the first sync pass.
	c.Prober.Check(ctx)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Prober.Run(gCtx)
	})

	g.Go(func() error {
		return offline.Watch(gCtx, c.Storage, c.logger, func(pending int) {
			if onCount != nil {
				onCount(pending)
			}
		})
	})

	g.Go(func() error {
		return c.Capturer.Run(gCtx)
	})

	g.Go(func() error {
		waitForShutdown(gCtx, c.logger)
		cancel()
		return nil
	})

	return g.Wait()
}
