package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var errStoreClosed = errors.New("store is closed")

// RedisKV stores the session record in Redis so several machines can share one login
type RedisKV struct {
	client *redis.Client
	addr   string
	mu     sync.RWMutex
	closed bool
}

// OpenRedisKV connects to the Redis server named by a redis:// URL
func OpenRedisKV(ctx context.Context, rawURL string) (*RedisKV, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, &StorageError{Path: rawURL, Op: "open", Err: err}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &StorageError{Path: opts.Addr, Op: "open", Err: fmt.Errorf("redis ping failed: %w", err)}
	}

	return &RedisKV{client: client, addr: opts.Addr}, nil
}

// NewRedisKVFromClient wraps an existing client, e.g. one pointed at miniredis
func NewRedisKVFromClient(client *redis.Client) *RedisKV {
	return &RedisKV{client: client, addr: client.Options().Addr}
}

func (r *RedisKV) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errStoreClosed
	}
	return nil
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := r.checkOpen(); err != nil {
		return "", false, &StorageError{Path: r.addr, Op: "get", Err: err}
	}
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Path: r.addr, Op: "get", Err: err}
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.checkOpen(); err != nil {
		return &StorageError{Path: r.addr, Op: "set", Err: err}
	}
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return &StorageError{Path: r.addr, Op: "set", Err: err}
	}
	return nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.checkOpen(); err != nil {
		return &StorageError{Path: r.addr, Op: "delete", Err: err}
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return &StorageError{Path: r.addr, Op: "delete", Err: err}
	}
	return nil
}

func (r *RedisKV) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
