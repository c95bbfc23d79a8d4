package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is a bounded map whose entries expire after ttl. When full, the
// least recently used entry is evicted.
type MemoryStore[T any] struct {
	cache *expirable.LRU[int64, T]
}

func NewMemoryStore[T any](capacity int, ttl time.Duration) *MemoryStore[T] {
	return &MemoryStore[T]{cache: expirable.NewLRU[int64, T](capacity, nil, ttl)}
}

var _ Store[struct{}] = (*MemoryStore[struct{}])(nil)

func (s *MemoryStore[T]) Get(_ context.Context, id int64) (T, bool, error) {
	value, ok := s.cache.Get(id)
	return value, ok, nil
}

func (s *MemoryStore[T]) Put(_ context.Context, id int64, value T) error {
	s.cache.Add(id, value)
	return nil
}

func (s *MemoryStore[T]) Delete(_ context.Context, id int64) error {
	s.cache.Remove(id)
	return nil
}

func (s *MemoryStore[T]) Len() int {
	return s.cache.Len()
}
