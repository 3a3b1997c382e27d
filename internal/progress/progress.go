package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the advisory progress mapping from job id to a 0-100 value.
// Entries are TTL-bounded and never authoritative: the durable job record
// owns correctness, this store only feeds client polling.
type Store interface {
	Set(ctx context.Context, jobID int64, percent int, ttl time.Duration) error
	Get(ctx context.Context, jobID int64) (int, bool, error)
}

// RedisStore keeps progress entries in Redis with a per-key TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects a progress store to the given Redis address.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// NewRedisStoreWithClient wraps an existing client (used in tests).
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func progressKey(jobID int64) string {
	return fmt.Sprintf("montage:progress:%d", jobID)
}

// Set stores the clamped percent value under the job key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, jobID int64, percent int, ttl time.Duration) error {
	return s.client.Set(ctx, progressKey(jobID), clamp(percent), ttl).Err()
}

// Get reads the progress value; the second return is false when the entry is
// absent or expired.
func (s *RedisStore) Get(ctx context.Context, jobID int64) (int, bool, error) {
	value, err := s.client.Get(ctx, progressKey(jobID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
