// Package connectivity reports network reachability and edge-triggered
// online/offline transitions.
package connectivity

import "sync"

// Signal is the read side of connectivity state.
type Signal interface {
	// Online reports current reachability.
	Online() bool
	// Subscribe registers fn for transitions. fn is called with the new state
	// only when it differs from the previous one. The returned func removes fn.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Monitor is an in-process Signal whose state is fed by Set.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(bool)
}

var _ Signal = (*Monitor)(nil)

// NewMonitor returns a Monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online:    online,
		listeners: make(map[int]func(bool)),
	}
}

// Online reports the last state passed to Set.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the current state and notifies listeners on a transition.
// Listeners run synchronously on the caller's goroutine, outside the lock.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if fn, ok := m.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe implements Signal.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}
