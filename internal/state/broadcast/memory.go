package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Hub links in-process transports into one broadcast scope. Every update
// published by any member is delivered to all members, the publisher
// included; origin filtering is the store's job.
type Hub struct {
	mu        sync.RWMutex
	members   map[*MemoryTransport]struct{}
	published atomic.Int64
}

// NewHub creates an empty in-process broadcast scope.
func NewHub() *Hub {
	return &Hub{members: make(map[*MemoryTransport]struct{})}
}

// Transport attaches a new member to the hub.
func (h *Hub) Transport(logger *zap.Logger) *MemoryTransport {
	t := &MemoryTransport{
		logger:   logger.Named("broadcast.memory"),
		hub:      h,
		watchers: make(map[chan *Update]struct{}),
	}
	h.mu.Lock()
	h.members[t] = struct{}{}
	h.mu.Unlock()
	return t
}

// Published returns the total number of updates published through the hub.
func (h *Hub) Published() int64 {
	return h.published.Load()
}

func (h *Hub) publish(u *Update) {
	h.published.Add(1)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for m := range h.members {
		m.deliver(u)
	}
}

func (h *Hub) detach(t *MemoryTransport) {
	h.mu.Lock()
	delete(h.members, t)
	h.mu.Unlock()
}

// MemoryTransport implements Transport over an in-process hub.
type MemoryTransport struct {
	logger   *zap.Logger
	hub      *Hub
	mu       sync.Mutex
	watchers map[chan *Update]struct{}
	closed   bool
}

var _ Transport = (*MemoryTransport)(nil)

// Publish implements Transport.Publish
func (t *MemoryTransport) Publish(_ context.Context, update *Update) error {
	t.hub.publish(update)
	return nil
}

// Watch implements Transport.Watch
func (t *MemoryTransport) Watch(ctx context.Context) (<-chan *Update, error) {
	ch := make(chan *Update, 64)

	t.mu.Lock()
	t.watchers[ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		if _, ok := t.watchers[ch]; ok {
			delete(t.watchers, ch)
			close(ch)
		}
		t.mu.Unlock()
	}()

	return ch, nil
}

// Close implements Transport.Close
func (t *MemoryTransport) Close() error {
	t.hub.detach(t)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for ch := range t.watchers {
		delete(t.watchers, ch)
		close(ch)
	}
	return nil
}

func (t *MemoryTransport) deliver(u *Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for ch := range t.watchers {
		select {
		case ch <- u:
		default:
			t.logger.Warn("watcher queue is full, dropping update",
				zap.String("key", u.Key))
		}
	}
}
