package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces orderdesk keys in a shared Redis
const DefaultKeyPrefix = "orderdesk:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisStore implements KeyValueStore using Redis strings.
// Several service instances can share one store.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a store with an existing Redis client
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the value stored under key
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key without expiration
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %q: %w", key, err)
	}
	return nil
}

// RedisLocker implements trade.Locker with redislock, so that local
// gateways in different processes sharing a RedisStore do not lose updates.
type RedisLocker struct {
	locker    *redislock.Client
	keyPrefix string
	retry     redislock.RetryStrategy
}

// NewRedisLocker creates a locker on the given client. Lock attempts retry
// every 50ms until the caller's context ends.
func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisLocker{
		locker:    redislock.New(client),
		keyPrefix: keyPrefix + "lock:",
		retry:     redislock.LinearBackoff(50 * time.Millisecond),
	}
}

// Lock obtains the lock on key for at most ttl
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, l.keyPrefix+key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("lock %q is held elsewhere: %w", key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %q: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

var (
	_ trade.KeyValueStore = (*RedisStore)(nil)
	_ trade.Locker        = (*RedisLocker)(nil)
)
