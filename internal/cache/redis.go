package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tasktrack/backend/internal/config"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrCacheDown = errors.New("cache unavailable")
)

// RedisCache is a JSON-over-Redis cache. Every operation runs through a
// circuit breaker: while the breaker is open calls fail fast with
// ErrCacheDown and callers fall back to the database.
type RedisCache struct {
	client  *redis.Client
	breaker *CircuitBreaker
}

func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
}

func NewRedisCache(client *redis.Client, breakerConfig *CircuitBreakerConfig) *RedisCache {
	return &RedisCache{
		client:  client,
		breaker: NewCircuitBreaker(breakerConfig),
	}
}

func (r *RedisCache) Set(key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return r.guarded(func(ctx context.Context) error {
		return r.client.Set(ctx, key, data, expiration).Err()
	})
}

func (r *RedisCache) Get(key string, dest interface{}) error {
	var data string
	err := r.guarded(func(ctx context.Context) error {
		var getErr error
		data, getErr = r.client.Get(ctx, key).Result()
		return getErr
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(key string) error {
	return r.guarded(func(ctx context.Context) error {
		return r.client.Del(ctx, key).Err()
	})
}

func (r *RedisCache) DeletePattern(pattern string) error {
	return r.guarded(func(ctx context.Context) error {
		keys, err := r.client.Keys(ctx, pattern).Result()
		if err != nil {
			return fmt.Errorf("failed to get keys for pattern %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			return r.client.Del(ctx, keys...).Err()
		}
		return nil
	})
}

func (r *RedisCache) Exists(key string) (bool, error) {
	var count int64
	err := r.guarded(func(ctx context.Context) error {
		var existsErr error
		count, existsErr = r.client.Exists(ctx, key).Result()
		return existsErr
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RedisCache) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) BreakerState() CircuitBreakerState {
	return r.breaker.GetState()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// guarded runs op through the circuit breaker with a bounded context.
// A cache miss is not counted as a backend failure.
func (r *RedisCache) guarded(op func(ctx context.Context) error) error {
	var missed bool

	err := r.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if opErr := op(ctx); opErr != nil {
			if errors.Is(opErr, redis.Nil) {
				missed = true
				return nil
			}
			return opErr
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrCircuitBreakerOpen) {
			return ErrCacheDown
		}
		return err
	}
	if missed {
		return ErrCacheMiss
	}
	return nil
}
