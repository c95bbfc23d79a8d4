package worker

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// MemoryFlags implements Flags in process for deployments without Redis.
// Every key shares the ttl given at construction.
type MemoryFlags struct {
	cache *expirable.LRU[string, struct{}]
}

func NewMemoryFlags(capacity int, ttl time.Duration) *MemoryFlags {
	return &MemoryFlags{cache: expirable.NewLRU[string, struct{}](capacity, nil, ttl)}
}

var _ Flags = (*MemoryFlags)(nil)

func (f *MemoryFlags) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if f.cache.Contains(key) {
		return redis.NewBoolResult(false, nil)
	}
	f.cache.Add(key, struct{}{})
	return redis.NewBoolResult(true, nil)
}

func (f *MemoryFlags) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if f.cache.Remove(key) {
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}
