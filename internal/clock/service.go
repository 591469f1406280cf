package clock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shiftclock/internal/domain"
	"shiftclock/internal/metrics"
	"shiftclock/internal/models"
	"shiftclock/internal/remote"

	"github.com/rs/zerolog"
)

// ErrNotSaved means the punch failed online AND could not be queued locally.
// The employee must be told to punch again; nothing was recorded anywhere.
var ErrNotSaved = errors.New("clock action was not saved, please try again")

// Service decides how one user-initiated punch is recorded: remotely when the
// network cooperates, queued locally when it does not. It always returns
// either a definitive result or an error, never a silent no-op.
type Service struct {
	remote          domain.RemoteClock
	queue           domain.ClockQueue
	cache           domain.ActionCache
	drainer         domain.Drainer
	connectivity    domain.ConnectivitySource
	debounceSeconds int
	remoteTimeout   time.Duration
	logger          *zerolog.Logger
	now             func() time.Time
}

func NewService(
	remoteClock domain.RemoteClock,
	queue domain.ClockQueue,
	cache domain.ActionCache,
	drainer domain.Drainer,
	connectivity domain.ConnectivitySource,
	debounceSeconds int,
	remoteTimeout time.Duration,
	logger *zerolog.Logger,
) *Service {
	if debounceSeconds <= 0 {
		debounceSeconds = models.DefaultDebounceSeconds
	}
	if remoteTimeout <= 0 {
		remoteTimeout = time.Duration(models.DefaultRemoteTimeout) * time.Second
	}
	return &Service{
		remote:          remoteClock,
		queue:           queue,
		cache:           cache,
		drainer:         drainer,
		connectivity:    connectivity,
		debounceSeconds: debounceSeconds,
		remoteTimeout:   remoteTimeout,
		logger:          logger,
		now:             time.Now,
	}
}

// PerformClockAction records one punch for the employee. The remote toggle
// decides in/out and enforces the debounce window; only when the network is
// down does the service guess the direction itself and queue the punch.
func (s *Service) PerformClockAction(ctx context.Context, employeeID, employeeName string) (*models.ClockActionResult, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("employee id is required")
	}
	if employeeName == "" {
		return nil, fmt.Errorf("employee name is required")
	}

	if s.connectivity != nil && !s.connectivity.Online() {
		return s.clockOffline(ctx, employeeID, employeeName)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	result, err := s.remote.Toggle(callCtx, remote.ToggleRequest{
		EmployeeID:      employeeID,
		DebounceSeconds: s.debounceSeconds,
	})
	if err != nil {
		if remote.IsRetryable(err) {
			s.logger.Warn().Err(err).Str("employee_id", employeeID).Msg("remote toggle unreachable, falling back to offline queue")
			return s.clockOffline(ctx, employeeID, employeeName)
		}
		// Validation/authorization style failures surface as real errors.
		// Queuing them would just replay the same guaranteed failure later.
		metrics.IncClockAction("error")
		return nil, fmt.Errorf("clock action failed: %w", err)
	}

	if !result.Success {
		// Debounce rejection is a legitimate business outcome, returned to
		// the caller verbatim. Never queued, never retried.
		metrics.IncClockAction("rejected")
		return &models.ClockActionResult{
			Success: false,
			Offline: false,
			Message: result.Message,
		}, nil
	}

	if result.Event == nil {
		metrics.IncClockAction("error")
		return nil, fmt.Errorf("remote reported success without an event")
	}

	if err := s.cache.SetLastAction(ctx, employeeID, result.Event.EventType); err != nil {
		s.logger.Warn().Err(err).Str("employee_id", employeeID).Msg("failed to update last-action cache")
	}

	// Connectivity is confirmed good, so give any previously queued punches
	// a chance to flush.
	s.drainer.TriggerDrain()

	metrics.IncClockAction("online")
	return &models.ClockActionResult{
		Success:   true,
		Offline:   false,
		Message:   clockMessage(employeeName, result.Event.EventType, false),
		Confirmed: result.Event,
	}, nil
}

func (s *Service) clockOffline(ctx context.Context, employeeID, employeeName string) (*models.ClockActionResult, error) {
	expected := s.deriveExpectedAction(ctx, employeeID)
	timestamp := s.now()

	id, err := s.queue.AppendEntry(ctx, employeeID, employeeName, expected, timestamp)
	if err != nil {
		// Fatal: no fake success when the punch landed nowhere.
		s.logger.Error().Err(err).Str("employee_id", employeeID).Msg("failed to queue offline punch")
		metrics.IncClockAction("error")
		return nil, fmt.Errorf("%w: %v", ErrNotSaved, err)
	}

	if err := s.cache.SetLastAction(ctx, employeeID, expected); err != nil {
		s.logger.Warn().Err(err).Str("employee_id", employeeID).Msg("failed to update last-action cache")
	}

	metrics.IncClockAction("offline")
	s.logger.Info().
		Str("employee_id", employeeID).
		Str("entry_id", id).
		Str("expected_action", string(expected)).
		Msg("punch saved offline")

	return &models.ClockActionResult{
		Success: true,
		Offline: true,
		Message: clockMessage(employeeName, expected, true),
		Pending: &models.PendingEvent{
			LocalID:    id,
			EmployeeID: employeeID,
			EventType:  expected,
			Timestamp:  timestamp,
		},
	}, nil
}

// deriveExpectedAction guesses the punch direction while offline: flip the
// last known event, preferring a fresh remote read, then the local cache,
// defaulting to clock-in when nothing is known.
func (s *Service) deriveExpectedAction(ctx context.Context, employeeID string) models.ClockAction {
	if s.connectivity == nil || s.connectivity.Online() {
		callCtx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
		defer cancel()
		if event, err := s.remote.GetLastEvent(callCtx, employeeID); err == nil {
			if event == nil {
				return models.ActionIn
			}
			return event.EventType.Flip()
		}
	}

	if last, ok, err := s.cache.GetLastAction(ctx, employeeID); err == nil && ok {
		return last.Flip()
	}
	return models.ActionIn
}

func clockMessage(employeeName string, action models.ClockAction, offline bool) string {
	verb := "in"
	if action == models.ActionOut {
		verb = "out"
	}
	if offline {
		return fmt.Sprintf("%s clocked %s (saved offline, will sync)", employeeName, verb)
	}
	return fmt.Sprintf("%s clocked %s", employeeName, verb)
}
