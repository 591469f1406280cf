package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"shiftclock/internal/domain"
	"shiftclock/internal/metrics"
	"shiftclock/internal/models"
	"shiftclock/internal/remote"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options tune the manager; zero values fall back to the defaults in models.
type Options struct {
	MaxAttempts  int
	EntryDelay   time.Duration
	PollInterval time.Duration
	CallTimeout  time.Duration
	Backoff      []time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = models.DefaultMaxSyncAttempts
	}
	if o.EntryDelay <= 0 {
		o.EntryDelay = models.DefaultEntryDelayMs * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = models.DefaultPollIntervalSeconds * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = models.DefaultRemoteTimeout * time.Second
	}
	if len(o.Backoff) == 0 {
		for _, s := range models.RetryBackoffSeconds {
			o.Backoff = append(o.Backoff, time.Duration(s)*time.Second)
		}
	}
}

// SyncManager eventually delivers every queued punch to the remote system,
// one drain at a time, without overwhelming the network. It is constructed
// once at process start and shared by reference; there are no package-level
// singletons.
type SyncManager struct {
	queue        domain.ClockQueue
	remote       domain.RemoteClock
	cache        domain.ActionCache
	bus          domain.StatusPublisher
	connectivity domain.ConnectivitySource
	clk          Clock
	logger       *zerolog.Logger
	opts         Options

	syncing atomic.Bool

	timerMu    sync.Mutex
	retryTimer Timer

	drainCh chan struct{}
}

func NewSyncManager(
	queue domain.ClockQueue,
	remoteClock domain.RemoteClock,
	cache domain.ActionCache,
	bus domain.StatusPublisher,
	connectivity domain.ConnectivitySource,
	clk Clock,
	opts Options,
	logger *zerolog.Logger,
) *SyncManager {
	opts.applyDefaults()
	if clk == nil {
		clk = NewRealClock()
	}
	return &SyncManager{
		queue:        queue,
		remote:       remoteClock,
		cache:        cache,
		bus:          bus,
		connectivity: connectivity,
		clk:          clk,
		logger:       logger,
		opts:         opts,
		drainCh:      make(chan struct{}, 1),
	}
}

// TriggerDrain requests a drain without blocking. Requests arriving while a
// drain is running coalesce into at most one follow-up pass.
func (m *SyncManager) TriggerDrain() {
	select {
	case m.drainCh <- struct{}{}:
	default:
	}
}

// Start runs the manager until ctx is done: drains on demand, on
// connectivity-restored events, and on a periodic safety-net timer that
// recovers from missed events.
func (m *SyncManager) Start(ctx context.Context) {
	unsubscribe := m.connectivity.Subscribe(func(online bool) {
		if online {
			m.logger.Info().Msg("connectivity restored, scheduling drain")
			m.TriggerDrain()
		}
	})
	defer unsubscribe()

	if m.connectivity.Online() {
		m.TriggerDrain()
	}

	ticker := m.clk.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()
	defer m.stopRetryTimer()

	m.logger.Info().Msg("sync manager started")
	defer m.logger.Info().Msg("sync manager stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.drainCh:
			m.Drain(ctx)
		case <-ticker.Chan():
			if m.syncing.Load() {
				continue
			}
			count, err := m.queue.CountEntries(ctx)
			if err != nil {
				m.logger.Error().Err(err).Msg("poll: count queue")
				continue
			}
			if count > 0 {
				m.Drain(ctx)
			}
		}
	}
}

// Drain makes one pass over the queue, oldest punch first. At most one drain
// runs at a time; overlapping calls are no-ops. Drain never returns an error:
// failures are recorded on the entries and reflected through the status bus.
func (m *SyncManager) Drain(ctx context.Context) {
	if !m.syncing.CompareAndSwap(false, true) {
		return
	}
	defer m.syncing.Store(false)

	if !m.connectivity.Online() {
		count, _ := m.queue.CountEntries(ctx)
		m.publish(models.SyncStatusEvent{Status: models.SyncIdle, QueueCount: count, Message: "offline"})
		return
	}

	entries, err := m.queue.ListEntries(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("drain: list queue")
		m.publish(models.SyncStatusEvent{Status: models.SyncError, Message: "failed to read queue", Error: err.Error()})
		return
	}

	if len(entries) == 0 {
		m.publish(models.SyncStatusEvent{Status: models.SyncIdle, QueueCount: 0, Message: "all synced"})
		metrics.SetQueueDepth(0)
		return
	}

	m.publish(models.SyncStatusEvent{Status: models.SyncSyncing, QueueCount: len(entries)})

	var synced, failed, actionable int
	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		entry := &entries[i]

		if entry.Attempts >= m.opts.MaxAttempts {
			// Left queued for manual review; automatic retries stop here.
			metrics.IncSyncAttempt("skipped")
			continue
		}

		if err := m.syncEntry(ctx, entry); err != nil {
			failed++
			attempts := entry.Attempts + 1
			if attempts < m.opts.MaxAttempts {
				actionable++
			} else {
				m.logger.Error().
					Str("entry_id", entry.ID).
					Int("attempts", attempts).
					Msg("entry reached max attempts, leaving for manual review")
			}
			metrics.IncSyncAttempt("failure")
			if uerr := m.queue.UpdateEntryAttempt(ctx, entry.ID, attempts, m.clk.Now(), err.Error()); uerr != nil {
				m.logger.Error().Err(uerr).Str("entry_id", entry.ID).Msg("drain: record attempt")
			}
		} else {
			synced++
			metrics.IncSyncAttempt("success")
			if rerr := m.queue.RemoveEntry(ctx, entry.ID); rerr != nil {
				m.logger.Error().Err(rerr).Str("entry_id", entry.ID).Msg("drain: remove synced entry")
			}
		}

		if i < len(entries)-1 {
			// Spread calls out so the remote service is not rate-limited.
			m.clk.Sleep(ctx, m.opts.EntryDelay)
		}
	}

	count, err := m.queue.CountEntries(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("drain: recount queue")
		count = len(entries) - synced
	}
	metrics.SetQueueDepth(count)

	if count == 0 {
		m.publish(models.SyncStatusEvent{Status: models.SyncSuccess, QueueCount: 0, Message: "all entries synced"})
		m.stopRetryTimer()
		return
	}

	m.publish(models.SyncStatusEvent{
		Status:     models.SyncError,
		QueueCount: count,
		Message:    fmt.Sprintf("%d synced, %d failed", synced, failed),
	})

	// Only reschedule while something is still automatically retryable;
	// entries at the attempt ceiling wait for the poll timer or an operator.
	if actionable > 0 {
		m.scheduleRetry(count)
	}
}

// syncEntry delivers one punch. The direction recorded at enqueue time may be
// stale by now, so the authoritative state is re-read just before submitting.
func (m *SyncManager) syncEntry(ctx context.Context, entry *models.QueuedClockEntry) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	lastEvent, err := m.remote.GetLastEvent(callCtx, entry.EmployeeID)
	if err != nil {
		return fmt.Errorf("read last event: %w", err)
	}

	expected := models.ActionIn
	if lastEvent != nil {
		expected = lastEvent.EventType.Flip()
	}

	result, err := m.remote.Toggle(callCtx, remote.ToggleRequest{
		EmployeeID: entry.EmployeeID,
		// No debounce on replay: the punch already happened, possibly long ago.
		DebounceSeconds: 0,
		IdempotencyKey:  uuid.NewSHA1(uuid.NameSpaceOID, []byte(entry.ID)).String(),
		Timestamp:       entry.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("submit punch: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("remote rejected punch: %s", result.Message)
	}
	if result.Event == nil {
		return fmt.Errorf("remote reported success without an event")
	}

	if result.Event.EventType != expected || result.Event.EventType != entry.ExpectedAction {
		m.logger.Warn().
			Str("entry_id", entry.ID).
			Str("queued_action", string(entry.ExpectedAction)).
			Str("derived_action", string(expected)).
			Str("server_action", string(result.Event.EventType)).
			Msg("queued punch drifted from server state")
	}

	if err := m.cache.SetLastAction(ctx, entry.EmployeeID, result.Event.EventType); err != nil {
		m.logger.Warn().Err(err).Str("employee_id", entry.EmployeeID).Msg("failed to update last-action cache")
	}

	m.logger.Info().
		Str("entry_id", entry.ID).
		Str("employee_id", entry.EmployeeID).
		Str("action", string(result.Event.EventType)).
		Msg("queued punch synced")
	return nil
}

// Status is a pure read for late-joining subscribers.
func (m *SyncManager) Status(ctx context.Context) models.SyncStatusEvent {
	count, err := m.queue.CountEntries(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("status: count queue")
	}

	status := models.SyncSuccess
	message := "all synced"
	switch {
	case m.syncing.Load():
		status = models.SyncSyncing
		message = "sync in progress"
	case count > 0:
		status = models.SyncIdle
		message = fmt.Sprintf("%d entries pending", count)
	}

	return models.SyncStatusEvent{Status: status, QueueCount: count, Message: message}
}

// scheduleRetry arms the backoff timer. Delays are keyed to the remaining
// queue size, not a global attempt counter: the more is stuck, the longer the
// pause before hammering the remote service again.
func (m *SyncManager) scheduleRetry(queueCount int) {
	idx := queueCount - 1
	if idx >= len(m.opts.Backoff) {
		idx = len(m.opts.Backoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	delay := m.opts.Backoff[idx]

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = m.clk.AfterFunc(delay, m.TriggerDrain)
	m.logger.Debug().Dur("delay", delay).Int("queue_count", queueCount).Msg("retry scheduled")
}

func (m *SyncManager) stopRetryTimer() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *SyncManager) publish(event models.SyncStatusEvent) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}
