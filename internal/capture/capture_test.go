package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/maelstrom/internal/apperr"
	"github.com/starford/maelstrom/internal/connectivity"
	"github.com/starford/maelstrom/internal/offline"
)

type insert struct {
	userID, content string
}

type fakeWriter struct {
	mu      sync.Mutex
	inserts []insert
	failOn  map[string]bool
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeWriter) InsertNote(_ context.Context, userID, content string) error {
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil || f.failOn[content] {
		return errors.New("remote rejected")
	}
	f.inserts = append(f.inserts, insert{userID, content})
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

type fakeIdentity struct {
	user string
	err  error
}

func (f fakeIdentity) CurrentUser(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.user == "" {
		return "", apperr.ErrUnauthenticated
	}
	return f.user, nil
}

type env struct {
	queue   *offline.Queue
	monitor *connectivity.Monitor
	writer  *fakeWriter
	c       *Capturer
}

func newEnv(t *testing.T, online bool, user string) *env {
	t.Helper()
	m := connectivity.NewMonitor(online)
	q := offline.NewQueue(&offline.MemoryStorage{}, m)
	w := &fakeWriter{failOn: map[string]bool{}}
	return &env{queue: q, monitor: m, writer: w, c: New(q, w, fakeIdentity{user: user}, m, nil)}
}

func TestSubmit_OfflineQueuesWithoutRemoteAttempt(t *testing.T) {
	e := newEnv(t, false, "u1")

	res, err := e.c.Submit(context.Background(), "  rainy thoughts  ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Queued || res.Pending == nil {
		t.Fatalf("result = %+v, want queued", res)
	}
	pending := e.queue.ListPending()
	if len(pending) != 1 || pending[0].Content != "rainy thoughts" {
		t.Errorf("pending = %+v", pending)
	}
	if e.writer.count() != 0 {
		t.Error("remote write attempted while offline")
	}
}

func TestSubmit_OnlineWritesRemotely(t *testing.T) {
	e := newEnv(t, true, "u1")

	res, err := e.c.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if res.Queued {
		t.Error("note should not be queued")
	}
	if e.writer.count() != 1 || e.writer.inserts[0] != (insert{"u1", "hello"}) {
		t.Errorf("inserts = %+v", e.writer.inserts)
	}
	if e.queue.PendingCount() != 0 {
		t.Error("queue should be empty")
	}
}

func TestSubmit_RemoteFailureFallsBackToQueue(t *testing.T) {
	e := newEnv(t, true, "u1")
	e.writer.err = errors.New("500")

	res, err := e.c.Submit(context.Background(), "keep me")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Queued {
		t.Fatal("expected queued")
	}
	pending := e.queue.ListPending()
	if len(pending) != 1 || pending[0].UserID != "u1" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestSubmit_NoIdentityFallsBackToQueue(t *testing.T) {
	e := newEnv(t, true, "")
	res, _ := e.c.Submit(context.Background(), "anonymous")
	if !res.Queued || e.queue.PendingCount() != 1 {
		t.Errorf("result = %+v, pending = %d", res, e.queue.PendingCount())
	}
}

func TestSubmit_Validation(t *testing.T) {
	e := newEnv(t, false, "u1")
	for _, raw := range []string{"", "   \n", strings.Repeat("é", 281)} {
		if _, err := e.c.Submit(context.Background(), raw); !errors.Is(err, apperr.ErrInvalidNote) {
			t.Errorf("Submit(%d runes) err = %v, want ErrInvalidNote", len([]rune(raw)), err)
		}
	}
	if _, err := e.c.Submit(context.Background(), strings.Repeat("é", 280)); err != nil {
		t.Errorf("280 runes rejected: %v", err)
	}
	if e.queue.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", e.queue.PendingCount())
	}
}

func TestSync_DrainsOnSuccess(t *testing.T) {
	e := newEnv(t, false, "u1")
	for _, s := range []string{"a", "b", "c"} {
		e.queue.SaveOffline(s, "")
	}
	e.monitor.Set(true)

	rep := e.c.Sync(context.Background())
	if rep.Synced != 3 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
	if n := e.queue.PendingCount(); n != 0 {
		t.Errorf("PendingCount = %d, want 0", n)
	}
	var order []string
	for _, in := range e.writer.inserts {
		order = append(order, in.content)
		if in.userID != "u1" {
			t.Errorf("insert user = %q", in.userID)
		}
	}
	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("delivery order = %v", order)
	}
}

func TestSync_KeepsFailedNote(t *testing.T) {
	e := newEnv(t, true, "u1")
	e.queue.SaveOffline("a", "")
	e.queue.SaveOffline("fails", "")
	e.queue.SaveOffline("c", "")
	e.writer.failOn["fails"] = true

	rep := e.c.Sync(context.Background())
	if rep.Synced != 2 || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	pending := e.queue.ListPending()
	if len(pending) != 1 || pending[0].Content != "fails" {
		t.Errorf("pending = %+v", pending)
	}

	delete(e.writer.failOn, "fails")
	e.c.Sync(context.Background())
	if e.queue.PendingCount() != 0 {
		t.Error("retry pass did not drain")
	}
}

func TestSync_NoOpWhenOffline(t *testing.T) {
	e := newEnv(t, false, "u1")
	e.queue.SaveOffline("a", "")
	if rep := e.c.Sync(context.Background()); !rep.Skipped {
		t.Errorf("report = %+v", rep)
	}
	if e.writer.count() != 0 || e.queue.PendingCount() != 1 {
		t.Error("offline sync touched the queue")
	}
}

func TestSync_NoOpWithoutIdentity(t *testing.T) {
	e := newEnv(t, true, "")
	e.queue.SaveOffline("a", "")
	if rep := e.c.Sync(context.Background()); !rep.Skipped {
		t.Errorf("report = %+v", rep)
	}
	if e.queue.PendingCount() != 1 {
		t.Error("note lost without identity")
	}
}

func TestSync_IdentityErrorSkips(t *testing.T) {
	m := connectivity.NewMonitor(true)
	q := offline.NewQueue(&offline.MemoryStorage{}, m)
	q.SaveOffline("a", "")
	w := &fakeWriter{}
	c := New(q, w, fakeIdentity{err: errors.New("timeout")}, m, nil)
	if rep := c.Sync(context.Background()); !rep.Skipped || q.PendingCount() != 1 {
		t.Errorf("report = %+v, pending = %d", rep, q.PendingCount())
	}
}

func TestSync_ConcurrentPassIsSkipped(t *testing.T) {
	e := newEnv(t, true, "u1")
	e.queue.SaveOffline("only once", "")
	e.writer.block = make(chan struct{})

	done := make(chan SyncReport)
	go func() { done <- e.c.Sync(context.Background()) }()

	// Wait for the first pass to take the in-flight flag.
	deadline := time.Now().Add(2 * time.Second)
	for !e.c.syncing.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rep := e.c.Sync(context.Background()); !rep.Skipped {
		t.Errorf("second pass = %+v, want skipped", rep)
	}
	close(e.writer.block)

	if rep := <-done; rep.Synced != 1 {
		t.Errorf("first pass = %+v", rep)
	}
	if e.writer.count() != 1 {
		t.Errorf("inserts = %d, want 1", e.writer.count())
	}
}

func TestRun_SyncsOnMountAndReconnect(t *testing.T) {
	e := newEnv(t, true, "u1")
	e.queue.SaveOffline("at mount", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.c.Run(ctx)

	waitFor(t, func() bool { return e.queue.PendingCount() == 0 }, "mount sync did not drain")

	e.monitor.Set(false)
	e.c.Submit(ctx, "while offline")
	if e.queue.PendingCount() != 1 {
		t.Fatal("offline submit not queued")
	}
	e.monitor.Set(true)

	waitFor(t, func() bool { return e.queue.PendingCount() == 0 }, "reconnect sync did not drain")
	if e.writer.count() != 2 {
		t.Errorf("inserts = %d, want 2", e.writer.count())
	}
}

// sharedCapturers builds n Capturers that each own a Queue over the same
// directory and deliver to one writer, like concurrent client processes.
func sharedCapturers(t *testing.T, n int, w *fakeWriter) []*Capturer {
	t.Helper()
	dir := t.TempDir()
	m := connectivity.NewMonitor(true)
	out := make([]*Capturer, n)
	for i := range out {
		fs, err := offline.NewFileStorage(dir, offline.DefaultKey)
		if err != nil {
			t.Fatalf("NewFileStorage: %v", err)
		}
		out[i] = New(offline.NewQueue(fs, m), w, fakeIdentity{user: "u1"}, m, nil)
	}
	return out
}

func TestSync_OtherProcessPassIsSkipped(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	cs := sharedCapturers(t, 2, w)
	cs[0].queue.SaveOffline("once", "")

	done := make(chan SyncReport)
	go func() { done <- cs[0].Sync(context.Background()) }()

	select {
	case <-w.entered:
	case <-time.After(3 * time.Second):
		t.Fatal("first pass never reached the writer")
	}
	if rep := cs[1].Sync(context.Background()); !rep.Skipped {
		t.Errorf("second pass = %+v, want skipped", rep)
	}
	close(w.block)

	if rep := <-done; rep.Synced != 1 {
		t.Errorf("first pass = %+v", rep)
	}
	if w.count() != 1 {
		t.Errorf("inserts = %d, want 1", w.count())
	}
}

func TestSync_SharedQueueDeliversEachNoteOnce(t *testing.T) {
	const notes = 50
	w := &fakeWriter{}
	cs := sharedCapturers(t, 2, w)
	for i := 0; i < notes; i++ {
		cs[0].queue.SaveOffline("note", "")
	}

	var wg sync.WaitGroup
	for _, c := range cs {
		wg.Add(1)
		go func(c *Capturer) {
			defer wg.Done()
			c.Sync(context.Background())
		}(c)
	}
	wg.Wait()

	if w.count() != notes {
		t.Errorf("inserts = %d, want %d", w.count(), notes)
	}
	for i, c := range cs {
		if n := c.queue.PendingCount(); n != 0 {
			t.Errorf("capturer %d sees %d pending", i, n)
		}
	}
}

func waitFor(t *testing.T, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
