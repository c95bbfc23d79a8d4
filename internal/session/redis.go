package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisStore keeps JSON-encoded values under "<prefix>:<id>" with a TTL that
// is refreshed on every Put. It lets several bot processes share dialogues.
type RedisStore[T any] struct {
	rdb      *redis.Client
	prefix   string
	ttl      time.Duration
	instance string
}

func NewRedisStore[T any](rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore[T] {
	s := &RedisStore[T]{
		rdb:      rdb,
		prefix:   prefix,
		ttl:      ttl,
		instance: uuid.NewString(),
	}
	log.WithFields(log.Fields{
		"prefix":   prefix,
		"ttl":      ttl,
		"instance": s.instance,
	}).Debug("Redis session store created")
	return s
}

var _ Store[struct{}] = (*RedisStore[struct{}])(nil)

func (s *RedisStore[T]) key(id int64) string {
	return fmt.Sprintf("%s:%d", s.prefix, id)
}

func (s *RedisStore[T]) Get(ctx context.Context, id int64) (T, bool, error) {
	var value T
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("failed to read session %s: %w", s.key(id), err)
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		log.WithFields(log.Fields{
			"key":      s.key(id),
			"instance": s.instance,
		}).WithError(err).Warn("Dropping undecodable session")
		_ = s.rdb.Del(ctx, s.key(id)).Err()
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

func (s *RedisStore[T]) Put(ctx context.Context, id int64, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.key(id), err)
	}
	if err := s.rdb.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session %s: %w", s.key(id), err)
	}
	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, id int64) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", s.key(id), err)
	}
	return nil
}
