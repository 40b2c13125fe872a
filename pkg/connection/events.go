package connection

import (
	"sync"
	"sync/atomic"
)

// EventType identifies what an Event reports.
type EventType int

const (
	// EventReceive carries a payload received from the server.
	EventReceive EventType = iota + 1
	// EventClose reports that the connection closed. Err is nil for a clean
	// close, including when the reconnect policy was exhausted.
	EventClose
	// EventReconnecting reports that the transport was lost and reconnecting began.
	EventReconnecting
	// EventReconnected reports that a reconnect attempt succeeded.
	EventReconnected
)

func (t EventType) String() string {
	switch t {
	case EventReceive:
		return "receive"
	case EventClose:
		return "close"
	case EventReconnecting:
		return "reconnecting"
	case EventReconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers.
type Event struct {
	Type EventType

	// Data is set for EventReceive.
	Data []byte

	// Err is the cause for EventClose and EventReconnecting.
	Err error

	// ConnectionID is set for EventReconnected.
	ConnectionID string
}

// Handler receives events. Handlers run synchronously on the goroutine that
// raised the event and must not block for long. A receive handler runs on the
// transport's read loop, so it must not call Stop synchronously.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
	active  atomic.Bool
}

// eventBus fans events out to subscribers in subscription order.
type eventBus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*subscription
}

// subscribe adds h and returns a func that removes it. The returned func is
// idempotent and may be called from inside a handler.
func (b *eventBus) subscribe(h Handler) func() {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, handler: h}
	sub.active.Store(true)
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				break
			}
		}
	}
}

func (b *eventBus) emit(e Event) {
	b.mu.Lock()
	snapshot := make([]*subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, sub := range snapshot {
		// A handler earlier in this dispatch may have unsubscribed it.
		if sub.active.Load() {
			sub.handler(e)
		}
	}
}

func (b *eventBus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscribe registers h for every event and returns its unsubscribe func.
func (c *Connection) Subscribe(h Handler) func() {
	return c.events.subscribe(h)
}

// OnReceive registers fn for received payloads.
func (c *Connection) OnReceive(fn func(data []byte)) func() {
	if fn == nil {
		return func() {}
	}
	return c.subscribeTo(EventReceive, func(e Event) { fn(e.Data) })
}

// OnClose registers fn for connection closure.
func (c *Connection) OnClose(fn func(err error)) func() {
	if fn == nil {
		return func() {}
	}
	return c.subscribeTo(EventClose, func(e Event) { fn(e.Err) })
}

// OnReconnecting registers fn for the start of reconnecting.
func (c *Connection) OnReconnecting(fn func(err error)) func() {
	if fn == nil {
		return func() {}
	}
	return c.subscribeTo(EventReconnecting, func(e Event) { fn(e.Err) })
}

// OnReconnected registers fn for a successful reconnect. It receives the new
// connection ID.
func (c *Connection) OnReconnected(fn func(connectionID string)) func() {
	if fn == nil {
		return func() {}
	}
	return c.subscribeTo(EventReconnected, func(e Event) { fn(e.ConnectionID) })
}

func (c *Connection) subscribeTo(t EventType, h Handler) func() {
	return c.events.subscribe(func(e Event) {
		if e.Type == t {
			h(e)
		}
	})
}
