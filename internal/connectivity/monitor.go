package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shiftclock/internal/models"

	"github.com/rs/zerolog"
)

// Prober checks whether the remote service answers. The remote client's Ping
// satisfies this.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor tracks remote reachability. It probes on a timer, keeps an atomic
// online flag, and notifies subscribers on every transition.
type Monitor struct {
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration
	logger       *zerolog.Logger

	online atomic.Bool

	mu     sync.Mutex
	nextID int
	subs   map[int]func(online bool)
}

func NewMonitor(prober Prober, interval time.Duration, logger *zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Duration(models.DefaultProbeIntervalSeconds) * time.Second
	}
	m := &Monitor{
		prober:       prober,
		interval:     interval,
		probeTimeout: 5 * time.Second,
		logger:       logger,
		subs:         make(map[int]func(online bool)),
	}
	m.online.Store(true)
	return m
}

// Online reports the last known reachability.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Subscribe registers a transition callback and returns its unsubscribe
// function. Callbacks run synchronously from the goroutine that observed the
// transition.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetOnline flips the flag directly, bypassing the prober. The next probe
// tick re-asserts the real state; without Start the override sticks, which is
// what tests and maintenance scripts rely on.
func (m *Monitor) SetOnline(online bool) {
	m.transition(online)
}

// Start probes until ctx is done. The first probe runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.prober.Ping(probeCtx)
	m.transition(err == nil)
}

func (m *Monitor) transition(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}

	m.logger.Info().Bool("online", online).Msg("connectivity changed")

	m.mu.Lock()
	callbacks := make([]func(online bool), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn(online)
	}
}
