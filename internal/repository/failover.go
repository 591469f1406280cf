package repository

import (
	"context"
	"sync/atomic"
	"time"

	"shiftclock/internal/domain"
	"shiftclock/internal/models"

	"github.com/rs/zerolog"
)

// FailoverActionCache serves from the primary (redis) cache and degrades to
// the in-memory fallback when the primary errors. After a minute it probes
// the primary again.
type FailoverActionCache struct {
	primary   domain.ActionCache
	fallback  domain.ActionCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverActionCache(primary, fallback domain.ActionCache, logger *zerolog.Logger) *FailoverActionCache {
	return &FailoverActionCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverActionCache) markDown() {
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverActionCache) shouldRecheck() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverActionCache) GetLastAction(ctx context.Context, employeeID string) (models.ClockAction, bool, error) {
	if !r.isDown.Load() || r.shouldRecheck() {
		action, ok, err := r.primary.GetLastAction(ctx, employeeID)
		if err == nil {
			r.isDown.Store(false)
			return action, ok, nil
		}
		r.logger.Error().Err(err).Msg("primary action cache failed, falling back to memory")
		r.markDown()
	}

	return r.fallback.GetLastAction(ctx, employeeID)
}

func (r *FailoverActionCache) SetLastAction(ctx context.Context, employeeID string, action models.ClockAction) error {
	// Always mirror into the fallback so a later primary outage still sees
	// writes made while the primary was healthy.
	if err := r.fallback.SetLastAction(ctx, employeeID, action); err != nil {
		return err
	}

	if !r.isDown.Load() || r.shouldRecheck() {
		err := r.primary.SetLastAction(ctx, employeeID, action)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.logger.Error().Err(err).Msg("primary action cache failed, falling back to memory")
		r.markDown()
	}

	return nil
}

func (r *FailoverActionCache) ClearLastAction(ctx context.Context, employeeID string) error {
	if err := r.fallback.ClearLastAction(ctx, employeeID); err != nil {
		return err
	}

	if !r.isDown.Load() || r.shouldRecheck() {
		err := r.primary.ClearLastAction(ctx, employeeID)
		if err == nil {
			r.isDown.Store(false)
			return nil
		}
		r.logger.Error().Err(err).Msg("primary action cache failed, falling back to memory")
		r.markDown()
	}

	return nil
}
