package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ensure RedisBackend implements Backend
var _ Backend = (*RedisBackend)(nil)

// RedisOptions configures one redis-backed tier.
type RedisOptions struct {
	Name     string
	Addr     string
	Password string
	DB       int
	TLS      bool
	// ConnectTimeout bounds dialing; OperationTimeout bounds each command.
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// RedisBackend adapts a single redis instance (or cluster, via the universal
// client) to the Backend interface. It performs no retries; go-redis internal
// retries are disabled so the service's plan logic is the only retry policy.
type RedisBackend struct {
	name      string
	client    redis.UniversalClient
	opTimeout time.Duration
}

func NewRedisBackend(opts RedisOptions) *RedisBackend {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 200 * time.Millisecond
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 500 * time.Millisecond
	}
	uopts := &redis.UniversalOptions{
		Addrs:        []string{opts.Addr},
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.ConnectTimeout,
		ReadTimeout:  opts.OperationTimeout,
		WriteTimeout: opts.OperationTimeout,
		MaxRetries:   -1, // plan-level fallback handles failures
	}
	if opts.TLS {
		uopts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &RedisBackend{
		name:      opts.Name,
		client:    redis.NewUniversalClient(uopts),
		opTimeout: opts.OperationTimeout,
	}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, classify(r.name, err)
	}
	return val, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return classify(r.name, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return classify(r.name, err)
	}
	return nil
}

// DeletePattern walks the keyspace with SCAN and deletes matches in batches.
// Interrupted scans leave a partial result; the count is a lower bound.
func (r *RedisBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	const batch = 100
	deleted := 0
	var cursor uint64
	for {
		scanCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		keys, next, err := r.client.Scan(scanCtx, cursor, pattern, batch).Result()
		cancel()
		if err != nil {
			return deleted, classify(r.name, err)
		}
		if len(keys) > 0 {
			delCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
			n, err := r.client.Del(delCtx, keys...).Result()
			cancel()
			deleted += int(n)
			if err != nil {
				return deleted, classify(r.name, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (r *RedisBackend) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	start := time.Now()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), classify(r.name, err)
	}
	return time.Since(start), nil
}

func (r *RedisBackend) Name() string { return r.name }

func (r *RedisBackend) Close() error { return r.client.Close() }
