// Package sse streams note and undercurrent changes to connected clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types published for note and undercurrent changes.
const (
	NoteCreated         = "note.created"
	NoteDeleted         = "note.deleted"
	UndercurrentCreated = "undercurrent.created"
	UndercurrentDeleted = "undercurrent.deleted"
	FeedUpdated         = "feed.updated"
)

var changeKinds = map[string]bool{
	NoteCreated:         true,
	NoteDeleted:         true,
	UndercurrentCreated: true,
	UndercurrentDeleted: true,
}

// Event is one frame on the stream. An empty User reaches every subscriber;
// otherwise only that user's subscribers and unscoped ones receive it.
type Event struct {
	Type string
	User string
	Data any
}

// ChangePayload is the data of a note or undercurrent change.
type ChangePayload struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

// FeedPayload is the data of feed.updated: the kind of change that triggered
// it and when.
type FeedPayload struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
}

type change struct {
	kind string
	id   string
	user string
}

type subscription struct {
	ch   chan []byte
	user string
}

// Option configures a Broker.
type Option func(*Broker)

// WithRequestUser sets how ServeHTTP scopes a connection to a user.
// Without it every connection sees every event.
func WithRequestUser(fn func(*http.Request) string) Option {
	return func(b *Broker) { b.userOf = fn }
}

// WithKeepAlive makes ServeHTTP write a comment frame every d so idle
// connections survive proxies. Zero disables it.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker fans change events out to SSE subscribers.
//
// A single loop goroutine owns the subscriber set and the per-user feed
// throttle. Public methods talk to it over channels.
type Broker struct {
	feedMin   time.Duration
	keepAlive time.Duration
	userOf    func(*http.Request) string

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one feed.updated per user
// every feedThrottle.
func NewBroker(feedThrottle time.Duration, opts ...Option) *Broker {
	if feedThrottle <= 0 {
		feedThrottle = 2 * time.Second
	}

	b := &Broker{
		feedMin:       feedThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func frame(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastFeed := make(map[string]time.Time)

	broadcast := func(event Event) {
		raw, err := frame(event)
		if err != nil {
			return
		}
		for ch, user := range clients {
			if event.User != "" && user != "" && user != event.User {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.user

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case c := <-b.changeCh:
			if !changeKinds[c.kind] {
				continue
			}
			broadcast(Event{Type: c.kind, User: c.user, Data: ChangePayload{ID: c.id, UserID: c.user}})

			now := time.Now()
			if now.Sub(lastFeed[c.user]) >= b.feedMin {
				lastFeed[c.user] = now
				broadcast(Event{Type: FeedUpdated, User: c.user, Data: FeedPayload{Kind: c.kind, At: now.UTC()}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every subscriber channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a subscriber that receives every event.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeUser("")
}

// SubscribeUser registers a subscriber scoped to userID.
func (b *Broker) SubscribeUser(userID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, user: userID}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends event as is.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange announces a note or undercurrent change to userID's
// subscribers, followed by a throttled feed.updated. Unknown kinds are ignored.
func (b *Broker) PublishChange(kind, userID, id string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- change{kind: kind, id: id, user: userID}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	user := ""
	if b.userOf != nil {
		user = b.userOf(r)
	}
	ch := b.SubscribeUser(user)
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
