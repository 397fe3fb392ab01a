package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eleven-am/verdict/internal/ports"
)

// compareAndDelete deletes the key only when its value matches, as one
// server-side operation.
var compareAndDelete = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// compareAndPut replaces the value only when the current value matches.
// ARGV[3] is the new ttl in milliseconds; 0 stores without expiry.
var compareAndPut = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	if tonumber(ARGV[3]) > 0 then
		redis.call("set", KEYS[1], ARGV[2], "px", ARGV[3])
	else
		redis.call("set", KEYS[1], ARGV[2])
	end
	return 1
end
return 0
`)

// Store implements ports.StoragePort on Redis for multi-process
// deployments. SET NX EX and a compare-and-delete script keep every
// mutation atomic at the backend.
type Store struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

func NewStore(client goredis.UniversalClient, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		logger: logger.With("component", "redis-storage"),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *Store) CompareAndPut(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	swapped, err := compareAndPut.Run(ctx, s.client, []string{key}, expected, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return swapped == 1, nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	deleted, err := compareAndDelete.Run(ctx, s.client, []string{key}, expected).Int()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ ports.StoragePort = (*Store)(nil)
