package repository

import (
	"context"
	"sync"
	"time"

	"shiftclock/internal/models"
)

type cachedAction struct {
	action    models.ClockAction
	expiresAt time.Time
}

// MemoryActionCache is the process-local fallback when redis is unreachable.
type MemoryActionCache struct {
	actions sync.Map
	ttl     time.Duration
}

func NewMemoryActionCache(ttl time.Duration) *MemoryActionCache {
	return &MemoryActionCache{ttl: ttl}
}

func (r *MemoryActionCache) GetLastAction(ctx context.Context, employeeID string) (models.ClockAction, bool, error) {
	val, ok := r.actions.Load(employeeID)
	if !ok {
		return "", false, nil
	}
	entry := val.(cachedAction)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.actions.Delete(employeeID)
		return "", false, nil
	}
	return entry.action, true, nil
}

func (r *MemoryActionCache) SetLastAction(ctx context.Context, employeeID string, action models.ClockAction) error {
	r.actions.Store(employeeID, cachedAction{action: action, expiresAt: time.Now().Add(r.ttl)})
	return nil
}

func (r *MemoryActionCache) ClearLastAction(ctx context.Context, employeeID string) error {
	r.actions.Delete(employeeID)
	return nil
}
