package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Ensure MemoryBackend implements Backend
var _ Backend = (*MemoryBackend)(nil)

// MemoryBackend is the in-process local tier, backed by ristretto with
// byte-cost accounting and per-entry TTL. Ristretto cannot enumerate keys,
// so a side index is kept for pattern deletes; the index may briefly hold
// keys ristretto has already evicted, which is fine because pattern deletion
// is best effort and Delete on an absent key is a no-op.
type MemoryBackend struct {
	name  string
	cache *ristretto.Cache
	keys  sync.Map // key -> struct{}
}

func NewMemoryBackend(name string, limitBytes int64) *MemoryBackend {
	if limitBytes <= 0 {
		limitBytes = 64 << 20
	}
	// NumCounters should be ~10x the expected item count. We don't know item
	// sizes up front; assume 10KB average and keep a floor.
	estimatedItems := limitBytes / 10240
	if estimatedItems < 100 {
		estimatedItems = 100
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: estimatedItems * 10,
		MaxCost:     limitBytes,
		BufferItems: 64,
		Cost: func(value interface{}) int64 {
			if val, ok := value.([]byte); ok {
				return int64(len(val))
			}
			return 1
		},
	})
	if err != nil {
		// Only reachable with a bad config literal above.
		panic(err)
	}
	return &MemoryBackend{name: name, cache: c}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, found := m.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	data, ok := val.([]byte)
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// Cost 0 lets ristretto apply the configured cost function.
	m.cache.SetWithTTL(key, value, 0, ttl)
	// Flush the set buffers so a Set is visible to an immediate Get.
	m.cache.Wait()
	m.keys.Store(key, struct{}{})
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.cache.Del(key)
	m.keys.Delete(key)
	return nil
}

func (m *MemoryBackend) DeletePattern(ctx context.Context, pattern string) (int, error) {
	count := 0
	m.keys.Range(func(k, _ any) bool {
		if ctx.Err() != nil {
			return false
		}
		key := k.(string)
		if ok, _ := path.Match(pattern, key); ok {
			m.cache.Del(key)
			m.keys.Delete(key)
			count++
		}
		return true
	})
	return count, ctx.Err()
}

func (m *MemoryBackend) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	m.cache.Get("__ping__")
	return time.Since(start), nil
}

func (m *MemoryBackend) Name() string { return m.name }

func (m *MemoryBackend) Close() error {
	m.cache.Close()
	return nil
}
