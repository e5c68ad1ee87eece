// Package cursor persists the inbound poll position.
//
// The memory store loses the position on restart, which makes Telegram
// redeliver unconfirmed updates; resolving an approval twice is harmless, so
// this only costs a repeated "not found" notification. The Redis store keeps
// the position across restarts.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store loads and saves the last processed sequence number.
type Store interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, seq int64) error
}

// Memory keeps the cursor in process memory.
type Memory struct {
	mu  sync.Mutex
	seq int64
}

// NewMemory returns an in-memory store starting at zero.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns the saved sequence.
func (m *Memory) Load(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq, nil
}

// Save stores seq.
func (m *Memory) Save(_ context.Context, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = seq
	return nil
}

// Redis keeps the cursor under a single key.
type Redis struct {
	client redis.Cmdable
	key    string
}

// DefaultKey is used when NewRedis is given an empty key.
const DefaultKey = "inboxrelay:telegram:cursor"

// NewRedis returns a store backed by client.
func NewRedis(client redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

// Load returns the saved sequence, or zero when none was saved.
func (r *Redis) Load(ctx context.Context) (int64, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor %s: %w", r.key, err)
	}
	seq, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %s=%q: %w", r.key, val, err)
	}
	return seq, nil
}

// Save stores seq without expiry.
func (r *Redis) Save(ctx context.Context, seq int64) error {
	if err := r.client.Set(ctx, r.key, strconv.FormatInt(seq, 10), 0).Err(); err != nil {
		return fmt.Errorf("save cursor %s: %w", r.key, err)
	}
	return nil
}
