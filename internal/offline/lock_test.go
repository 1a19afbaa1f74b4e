package offline

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/maelstrom/internal/connectivity"
)

func TestFileLock_TryLockWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.lock")
	a, b := NewFileLock(path), NewFileLock(path)

	release, err := a.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := b.TryLock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("TryLock while held = %v, want ErrLocked", err)
	}
	release()

	release, err = b.TryLock()
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	release()
}

// sharedQueues opens n independent queues over one directory, the way
// separate client processes do.
func sharedQueues(t *testing.T, n int) []*Queue {
	t.Helper()
	dir := t.TempDir()
	m := connectivity.NewMonitor(false)
	out := make([]*Queue, n)
	for i := range out {
		fs, err := NewFileStorage(dir, DefaultKey)
		if err != nil {
			t.Fatalf("NewFileStorage: %v", err)
		}
		out[i] = NewQueue(fs, m)
	}
	return out
}

func TestQueue_SharedDirectoryKeepsEveryNote(t *testing.T) {
	const perQueue = 50
	queues := sharedQueues(t, 2)

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		go func(q *Queue) {
			defer wg.Done()
			for i := 0; i < perQueue; i++ {
				q.SaveOffline("note", "")
			}
		}(q)
	}
	wg.Wait()

	for i, q := range queues {
		if n := q.PendingCount(); n != 2*perQueue {
			t.Errorf("queue %d pending = %d, want %d", i, n, 2*perQueue)
		}
	}
}

func TestQueue_SharedDirectoryClearsConcurrently(t *testing.T) {
	queues := sharedQueues(t, 2)
	var ids []string
	for i := 0; i < 40; i++ {
		ids = append(ids, queues[0].SaveOffline("note", "").ID)
	}

	var wg sync.WaitGroup
	for i, q := range queues {
		wg.Add(1)
		go func(q *Queue, start int) {
			defer wg.Done()
			for j := start; j < len(ids); j += 2 {
				q.ClearPending(ids[j])
			}
			q.SaveOffline("kept", "")
		}(q, i)
	}
	wg.Wait()

	pending := queues[1].ListPending()
	if len(pending) != 2 {
		t.Fatalf("pending = %+v, want the two kept notes", pending)
	}
	for _, p := range pending {
		if p.Content != "kept" {
			t.Errorf("unexpected leftover %+v", p)
		}
	}
}

func TestQueue_BeginSyncExcludesOtherQueues(t *testing.T) {
	queues := sharedQueues(t, 2)

	release, ok := queues[0].BeginSync()
	if !ok {
		t.Fatal("first BeginSync refused")
	}
	if _, ok := queues[1].BeginSync(); ok {
		t.Fatal("second queue began a sync while the first held it")
	}
	release()

	release, ok = queues[1].BeginSync()
	if !ok {
		t.Fatal("BeginSync refused after release")
	}
	release()
}

func TestQueue_BeginSyncWithoutSharedStorage(t *testing.T) {
	q := NewQueue(&MemoryStorage{}, connectivity.NewMonitor(true))
	release, ok := q.BeginSync()
	if !ok || release == nil {
		t.Fatal("in-memory queue must always allow a sync pass")
	}
	release()
}
