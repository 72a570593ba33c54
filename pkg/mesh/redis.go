package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPollInterval bounds each BLPOP so Recv notices context cancellation.
	// Recv itself waits indefinitely.
	DefaultPollInterval = time.Second

	// DefaultKeyTTL expires run keys left behind by members that crashed.
	DefaultKeyTTL = time.Hour
)

// RedisTransport is one member's endpoint in a multi-process group that
// shares a Redis server. It is safe for concurrent use.
type RedisTransport struct {
	rdb          *redis.Client
	runID        string
	rank         int
	size         int
	pollInterval time.Duration
	keyTTL       time.Duration

	mu          sync.Mutex
	abortReason string // set once an abort has been observed or raised
}

// RedisOption customises a RedisTransport.
type RedisOption func(*RedisTransport)

// WithPollInterval overrides DefaultPollInterval. Redis rounds BLPOP timeouts
// up to whole seconds.
func WithPollInterval(d time.Duration) RedisOption {
	return func(t *RedisTransport) { t.pollInterval = d }
}

// WithKeyTTL overrides DefaultKeyTTL.
func WithKeyTTL(d time.Duration) RedisOption {
	return func(t *RedisTransport) { t.keyTTL = d }
}

// NewRedisTransport creates the transport for rank in a group of size members.
// All keys are namespaced with runID.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - runID: identifier shared by every member of the run (must not be empty)
//   - rank, size: this member's position and the group size
func NewRedisTransport(redisOpts *redis.Options, runID string, rank, size int, opts ...RedisOption) (*RedisTransport, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}
	if size < 1 || rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d in group of %d", ErrInvalidRank, rank, size)
	}

	t := &RedisTransport{
		rdb:          redis.NewClient(redisOpts),
		runID:        runID,
		rank:         rank,
		size:         size,
		pollInterval: DefaultPollInterval,
		keyTTL:       DefaultKeyTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (t *RedisTransport) Close() error {
	return t.rdb.Close()
}

// Ping verifies Redis connectivity.
func (t *RedisTransport) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}

func (t *RedisTransport) abortErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.abortReason == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrAborted, t.abortReason)
}

func (t *RedisTransport) markAborted(reason string) {
	if reason == "" {
		reason = "aborted"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.abortReason == "" {
		t.abortReason = reason
	}
}

// Send pushes payload onto the (this rank, to, tag) list and refreshes its TTL
// in one MULTI/EXEC.
func (t *RedisTransport) Send(ctx context.Context, to int, tag string, payload []byte) error {
	if err := t.abortErr(); err != nil {
		return err
	}

	key := MessageKey(t.runID, t.rank, to, tag)
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, t.keyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push message to Redis: %w", err)
	}
	return nil
}

// Recv pops the next payload from the (from, this rank, tag) list. It waits on
// this rank's abort list at the same time, so an abort from any member wakes it.
func (t *RedisTransport) Recv(ctx context.Context, from int, tag string) ([]byte, error) {
	msgKey := MessageKey(t.runID, from, t.rank, tag)
	abortKey := AbortKey(t.runID, t.rank)

	for {
		if err := t.abortErr(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := t.rdb.BLPop(ctx, t.pollInterval, msgKey, abortKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to pop message from Redis: %w", err)
		}

		// BLPOP returns [key, value].
		if result[0] == abortKey {
			t.markAborted(result[1])
			return nil, t.abortErr()
		}
		return []byte(result[1]), nil
	}
}

// Abort pushes reason onto every member's abort list, including this one's.
func (t *RedisTransport) Abort(ctx context.Context, reason string) error {
	t.markAborted(reason)

	_, err := t.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for r := 0; r < t.size; r++ {
			key := AbortKey(t.runID, r)
			pipe.RPush(ctx, key, reason)
			pipe.Expire(ctx, key, t.keyTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish abort: %w", err)
	}
	return nil
}

// Cleanup deletes every key of the run. Intended for the launcher once all
// members have exited.
func (t *RedisTransport) Cleanup(ctx context.Context) error {
	iter := t.rdb.Scan(ctx, 0, fmt.Sprintf("halo:%s:*", t.runID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan run keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := t.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete run keys: %w", err)
	}
	return nil
}
