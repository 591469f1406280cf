package repository

import (
	"context"
	"fmt"
	"time"

	"shiftclock/internal/config"
	"shiftclock/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisActionCache keeps the last known punch direction per employee in
// redis so it survives terminal restarts.
type RedisActionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	return redis.NewClient(options)
}

func NewRedisActionCache(client *redis.Client, ttl time.Duration) *RedisActionCache {
	return &RedisActionCache{client: client, ttl: ttl}
}

func lastActionKey(employeeID string) string {
	return fmt.Sprintf("last_action:%s", employeeID)
}

func (r *RedisActionCache) GetLastAction(ctx context.Context, employeeID string) (models.ClockAction, bool, error) {
	if r.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, lastActionKey(employeeID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get last action from redis: %w", err)
	}

	action := models.ClockAction(val)
	if !action.Valid() {
		return "", false, fmt.Errorf("corrupt last action value: %q", val)
	}
	return action, true, nil
}

func (r *RedisActionCache) SetLastAction(ctx context.Context, employeeID string, action models.ClockAction) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, lastActionKey(employeeID), string(action), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set last action in redis: %w", err)
	}
	return nil
}

func (r *RedisActionCache) ClearLastAction(ctx context.Context, employeeID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, lastActionKey(employeeID)).Err(); err != nil {
		return fmt.Errorf("failed to delete last action from redis: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
