package events

import (
	"sync"

	"shiftclock/internal/models"

	"github.com/rs/zerolog"
)

// StatusListener receives sync status snapshots.
type StatusListener func(event models.SyncStatusEvent)

// StatusBus is an in-process pub/sub channel between the sync manager and
// however many consumers are attached. Snapshots are coalesce-safe, so no
// buffering or backpressure is needed.
type StatusBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]StatusListener
	order  []int
	logger *zerolog.Logger
}

// NewStatusBus constructs an empty bus.
func NewStatusBus(logger *zerolog.Logger) *StatusBus {
	return &StatusBus{subs: make(map[int]StatusListener), logger: logger}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is a no-op.
func (b *StatusBus) Subscribe(fn StatusListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the snapshot to all current listeners synchronously, in
// subscription order. A panicking listener must not take down the publisher
// or starve the remaining listeners.
func (b *StatusBus) Publish(event models.SyncStatusEvent) {
	b.mu.RLock()
	listeners := make([]StatusListener, 0, len(b.order))
	for _, id := range b.order {
		if fn, ok := b.subs[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		b.invoke(fn, event)
	}
}

// SubscriberCount reports how many listeners are attached.
func (b *StatusBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *StatusBus) invoke(fn StatusListener, event models.SyncStatusEvent) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Error().Interface("panic", r).Msg("status listener panicked")
		}
	}()
	fn(event)
}
