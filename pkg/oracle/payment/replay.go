package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplaySet tracks consumed settlement identifiers. Add must be an
// atomic check-and-insert so two concurrent requests with the same
// proof cannot both succeed.
type ReplaySet interface {
	// Add reserves an identifier. Returns false when it was already
	// present.
	Add(ctx context.Context, id string) (bool, error)
	// Remove releases a reservation (used when settlement fails after
	// the reservation was taken).
	Remove(ctx context.Context, id string) error
}

// MemoryReplaySet is a mutex-guarded in-process replay set for
// standalone deployments and tests.
type MemoryReplaySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryReplaySet() *MemoryReplaySet {
	return &MemoryReplaySet{seen: make(map[string]struct{})}
}

func (s *MemoryReplaySet) Add(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	return true, nil
}

func (s *MemoryReplaySet) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
	return nil
}

const replayKeyPrefix = "oracle:payment:nonce:"

// RedisReplaySet shares the replay set across instances. SETNX gives
// the atomic check-and-insert.
type RedisReplaySet struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisReplaySet creates a redis-backed replay set. A zero ttl
// keeps identifiers forever; otherwise entries outlive the proof's
// validity window so expiry never reopens a replay.
func NewRedisReplaySet(client redis.UniversalClient, ttl time.Duration) *RedisReplaySet {
	return &RedisReplaySet{client: client, ttl: ttl}
}

func (s *RedisReplaySet) Add(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, replayKeyPrefix+id, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve payment nonce: %w", err)
	}
	return ok, nil
}

func (s *RedisReplaySet) Remove(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, replayKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to release payment nonce: %w", err)
	}
	return nil
}
