package internal

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/noteservice"
	"github.com/starford/maelstrom/internal/testutil"
)

func testHTTPServer(t *testing.T, cfg *Config) (*httptest.Server, *noteservice.Service) {
	t.Helper()
	db := testutil.TestDB(t)
	llm := &testutil.ScriptedLLM{Reply: testutil.InsightReply("x")}
	svc := noteservice.NewService(db, insight.NewGenerator(db, llm, insight.Config{}, nil), nil, nil)
	srv := httptest.NewServer(NewHTTPHandler(cfg, svc, nil))
	t.Cleanup(srv.Close)
	return srv, svc
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "tok", UserID: "alice"}
	cfg.Client.Token = "tok"
	cfg.Client.QueueDir = t.TempDir()
	cfg.Client.ProbeInterval = time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestHTTPHandler_HealthAndAuth(t *testing.T) {
	cfg := testConfig(t)
	srv, _ := testHTTPServer(t, cfg)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		req, _ := http.NewRequest(method, srv.URL+"/health/live", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s /health/live = %d", method, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/api/me")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("/api/me without token = %d", resp.StatusCode)
	}
}

func TestClient_QueueThenSync(t *testing.T) {
	cfg := testConfig(t)
	srv, svc := testHTTPServer(t, cfg)
	cfg.Client.ServerURL = srv.URL

	c, err := NewClient(cfg, NewClientLogger(nil, slog.LevelError))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// The monitor starts offline until probed.
	res, err := c.Capturer.Submit(ctx, "written underground")
	if err != nil || !res.Queued {
		t.Fatalf("Submit = %+v, %v", res, err)
	}

	if !c.Prober.Check(ctx) {
		t.Fatal("server should be reachable")
	}
	if rep := c.Capturer.Sync(ctx); rep.Synced != 1 {
		t.Fatalf("sync report = %+v", rep)
	}
	notes, _ := svc.ListNotes(ctx, "alice", time.Time{}, 0)
	if len(notes) != 1 || notes[0].Content != "written underground" {
		t.Errorf("server notes = %+v", notes)
	}

	// Online submissions go straight through.
	if res, _ := c.Capturer.Submit(ctx, "back above"); res.Queued {
		t.Error("online submit was queued")
	}
}

func TestClient_WatchDrainsQueue(t *testing.T) {
	cfg := testConfig(t)
	srv, _ := testHTTPServer(t, cfg)
	cfg.Client.ServerURL = srv.URL

	c, err := NewClient(cfg, NewClientLogger(nil, slog.LevelError))
	if err != nil {
		t.Fatal(err)
	}
	c.Queue.SaveOffline("from yesterday", "")

	var last atomic.Int64
	last.Store(-1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(n int) { last.Store(int64(n)) })
	}()

	deadline := time.Now().Add(5 * time.Second)
	for c.Queue.PendingCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if n := c.Queue.PendingCount(); n != 0 {
		t.Errorf("pending = %d after watch", n)
	}
	for last.Load() != 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if got := last.Load(); got != 0 {
		t.Errorf("last reported count = %d, want 0", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
