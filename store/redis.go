package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	defense "github.com/jassus213/go-defense"
	"github.com/redis/go-redis/v9"
)

// addLua adds ARGV[1] (possibly negative) to KEYS[1] and re-applies the TTL
// in milliseconds from ARGV[2]; a TTL of 0 makes the key persistent.
const addLua = `
	local current = redis.call("INCRBY", KEYS[1], ARGV[1])
	local ttl = tonumber(ARGV[2])
	if ttl > 0 then
		redis.call("PEXPIRE", KEYS[1], ttl)
	else
		redis.call("PERSIST", KEYS[1])
	end
	return current
`

// unavailablePrefixes are server replies that mean "try again later" rather
// than "bad data".
var unavailablePrefixes = []string{"LOADING", "READONLY", "MASTERDOWN", "CLUSTERDOWN", "TRYAGAIN", "BUSY"}

// RedisStore implements defense.CounterStore using Redis as the backend.
// It is suitable for distributed systems where multiple application instances
// need to share counters. Increase and Decrease run as a single Lua script so
// the increment and the TTL refresh are atomic.
type RedisStore struct {
	client    redis.UniversalClient
	addScript *redis.Script
	opts      options
}

var _ defense.CounterStore = (*RedisStore)(nil)

// NewRedis creates a new instance of RedisStore. The client is shared, not
// owned: closing it stays the caller's job.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	st := store.NewRedis(client, store.WithKeyPrefix("defense:"))
func NewRedis(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{
		client:    client,
		addScript: redis.NewScript(addLua),
		opts:      newOptions(opts),
	}
}

// Increase executes the add script with a positive delta.
func (s *RedisStore) Increase(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	if err := defense.ValidateStep(step); err != nil {
		return 0, err
	}
	return s.add(ctx, "increase", key, step, timeout)
}

// Decrease executes the add script with a negative delta.
func (s *RedisStore) Decrease(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	if err := defense.ValidateStep(step); err != nil {
		return 0, err
	}
	return s.add(ctx, "decrease", key, -step, timeout)
}

func (s *RedisStore) add(ctx context.Context, op, key string, delta int64, timeout time.Duration) (int64, error) {
	res, err := s.addScript.Run(ctx, s.client, []string{s.opts.key(key)}, delta, ttlMillis(timeout)).Result()
	if err != nil {
		return 0, classify(ctx, op, key, err)
	}

	value, ok := res.(int64)
	if !ok {
		return 0, defense.NewBackendError(defense.KindProtocol, op, key,
			fmt.Errorf("unexpected script reply %T", res))
	}
	return value, nil
}

// Get reads the counter at key. A missing key is reported with ok == false.
func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := s.client.Get(ctx, s.opts.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify(ctx, "get", key, err)
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, defense.NewBackendError(defense.KindProtocol, "get", key, err)
	}
	return value, true, nil
}

// Set overwrites the counter at key with SET PX, or a plain SET when timeout <= 0.
func (s *RedisStore) Set(ctx context.Context, key string, value int64, timeout time.Duration) error {
	if timeout < 0 {
		timeout = 0
	}
	if err := s.client.Set(ctx, s.opts.key(key), value, timeout).Err(); err != nil {
		return classify(ctx, "set", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.opts.key(key)).Err(); err != nil {
		return classify(ctx, "remove", key, err)
	}
	return nil
}

func ttlMillis(timeout time.Duration) int64 {
	if timeout <= 0 {
		return 0
	}
	return max(timeout.Milliseconds(), 1)
}

// classify turns a go-redis error into a *defense.BackendError. A
// cancellation by the caller is returned as is.
func classify(ctx context.Context, op, key string, err error) error {
	if canceledByCaller(ctx, err) {
		return err
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		msg := replyErr.Error()
		for _, prefix := range unavailablePrefixes {
			if strings.HasPrefix(msg, prefix) {
				return defense.NewBackendError(defense.KindUnavailable, op, key, err)
			}
		}
		return defense.NewBackendError(defense.KindProtocol, op, key, err)
	}
	return defense.NewBackendError(defense.KindUnavailable, op, key, err)
}
