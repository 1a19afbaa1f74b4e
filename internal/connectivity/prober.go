package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Prober drives a Monitor by probing a health endpoint.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	monitor  *Monitor
	logger   *slog.Logger
}

// NewProber returns a Prober that issues HEAD requests against url.
func NewProber(url string, interval time.Duration, monitor *Monitor, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Prober{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 3 * time.Second},
		monitor:  monitor,
		logger:   logger,
	}
}

// Check probes once, updates the monitor and returns the observed state.
func (p *Prober) Check(ctx context.Context) bool {
	online := p.probe(ctx)
	p.monitor.Set(online)
	return online
}

func (p *Prober) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe: unreachable", slog.String("url", p.url), slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Run probes immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	p.Check(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			before := p.monitor.Online()
			if after := p.Check(ctx); after != before {
				p.logger.Info("connectivity changed", slog.Bool("online", after))
			}
		}
	}
}
