// Package storage provides ledger backends other than the local file log.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list that holds the ledger when no key is configured.
const DefaultKey = "dopt:ledger"

// replayPage is the number of entries fetched per LRANGE during Replay.
const replayPage = 1000

// RedisLog implements opt.LedgerLog on a Redis list. Each Append is one RPUSH,
// so the list order is the append order. Durability follows the server's
// persistence settings (appendonly / appendfsync).
type RedisLog struct {
	client *redis.Client
	key    string
	mu     sync.RWMutex
}

// NewRedisLog connects to addr and returns a log stored under key.
// An empty key selects DefaultKey.
func NewRedisLog(addr, password string, db int, key string) (*RedisLog, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if key == "" {
		key = DefaultKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisLog{client: client, key: key}, nil
}

// Key returns the Redis list key.
func (r *RedisLog) Key() string { return r.key }

func (r *RedisLog) conn() (*redis.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.client == nil {
		return nil, os.ErrClosed
	}
	return r.client, nil
}

// Replay passes every stored line to fn in append order.
func (r *RedisLog) Replay(ctx context.Context, fn func(line []byte) error) error {
	client, err := r.conn()
	if err != nil {
		return err
	}
	for start := int64(0); ; start += replayPage {
		vals, err := client.LRange(ctx, r.key, start, start+replayPage-1).Result()
		if err != nil {
			return fmt.Errorf("failed to read ledger %s from redis: %w", r.key, err)
		}
		for _, v := range vals {
			if err := fn([]byte(v)); err != nil {
				return err
			}
		}
		if len(vals) < replayPage {
			return nil
		}
	}
}

// Append pushes one line onto the list.
func (r *RedisLog) Append(ctx context.Context, line []byte) error {
	client, err := r.conn()
	if err != nil {
		return err
	}
	if err := client.RPush(ctx, r.key, line).Err(); err != nil {
		return fmt.Errorf("failed to append to ledger %s in redis: %w", r.key, err)
	}
	return nil
}

// Len returns the number of stored lines.
func (r *RedisLog) Len(ctx context.Context) (int64, error) {
	client, err := r.conn()
	if err != nil {
		return 0, err
	}
	return client.LLen(ctx, r.key).Result()
}

// Ping checks the Redis connection health.
func (r *RedisLog) Ping(ctx context.Context) error {
	client, err := r.conn()
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
// It is safe to call multiple times.
func (r *RedisLog) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}

	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
