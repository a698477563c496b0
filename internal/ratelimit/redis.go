package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"botevents-api/internal/logger"
	"botevents-api/internal/model"
)

// Both scripts return {count, blocked_until_ms}.
var incrementScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local blocked = tonumber(redis.call("HGET", KEYS[1], "blocked_until") or "0")
	if blocked > 0 and blocked <= now then
		redis.call("DEL", KEYS[1])
		blocked = 0
	end
	local count = redis.call("HINCRBY", KEYS[1], "count", 1)
	if blocked == 0 and count >= tonumber(ARGV[2]) then
		blocked = now + tonumber(ARGV[3])
		redis.call("HSET", KEYS[1], "blocked_until", blocked)
		redis.call("PEXPIREAT", KEYS[1], blocked + tonumber(ARGV[3]))
	end
	return {count, blocked}
`)

var observeScript = redis.NewScript(`
	local vals = redis.call("HMGET", KEYS[1], "count", "blocked_until")
	if not vals[1] then
		return {0, 0}
	end
	local blocked = tonumber(vals[2] or "0")
	if blocked > 0 and blocked <= tonumber(ARGV[1]) then
		redis.call("DEL", KEYS[1])
		return {0, 0}
	end
	return {tonumber(vals[1]), blocked}
`)

// RedisConfig holds configuration for RedisStore.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore shares failure records between replicas. Each operation is a
// single Lua script, so updates are atomic per origin.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	s := NewRedisStoreWithClient(client, cfg.KeyPrefix)
	logger.FromContext(ctx).Info("[RedisStore] Connected", "db", cfg.DB, "prefix", s.keyPrefix)
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "botevents:authfail"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) key(origin string) string {
	return s.keyPrefix + ":" + origin
}

// Observe returns the record for origin, resetting an expired lockout.
func (s *RedisStore) Observe(ctx context.Context, origin string, now time.Time) (model.AuthAttemptRecord, error) {
	vals, err := observeScript.Run(ctx, s.client, []string{s.key(origin)}, now.UnixMilli()).Int64Slice()
	if err != nil {
		return model.AuthAttemptRecord{}, fmt.Errorf("failed to observe auth record: %w", err)
	}
	return toRecord(vals), nil
}

// Increment records one failure for origin.
func (s *RedisStore) Increment(ctx context.Context, origin string, now time.Time, threshold int, lockout time.Duration) (model.AuthAttemptRecord, error) {
	vals, err := incrementScript.Run(ctx, s.client, []string{s.key(origin)},
		now.UnixMilli(), threshold, lockout.Milliseconds()).Int64Slice()
	if err != nil {
		return model.AuthAttemptRecord{}, fmt.Errorf("failed to increment auth record: %w", err)
	}
	return toRecord(vals), nil
}

// Delete removes the record for origin.
func (s *RedisStore) Delete(ctx context.Context, origin string) error {
	return s.client.Del(ctx, s.key(origin)).Err()
}

// Len counts tracked origins with SCAN.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, s.keyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func toRecord(vals []int64) model.AuthAttemptRecord {
	var rec model.AuthAttemptRecord
	if len(vals) != 2 {
		return rec
	}
	rec.Count = int(vals[0])
	if vals[1] > 0 {
		rec.BlockedUntil = time.UnixMilli(vals[1])
	}
	return rec
}

var _ Store = (*RedisStore)(nil)
