package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/remodelai/remodel-backend/internal/platform/logger"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("redis: key not found")

// KV is the durable key/value store used for session-scoped state.
// All writes carry a TTL; there is no unbounded persistence.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Update performs an optimistic check-and-set on a single key: fn receives
	// the current value (nil when absent) and returns the value to write.
	// Concurrent writers to the same key retry; writers to other keys are
	// unaffected.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error

	Del(ctx context.Context, key string) error
	Close() error
}

type kv struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewKV(log *logger.Logger) (KV, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DB:          0,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &kv{
		log: log.With("client", "RedisKV"),
		rdb: rdb,
	}, nil
}

func (s *kv) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("redis KV not initialized")
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *kv) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV not initialized")
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

const casMaxRetries = 5

func (s *kv) Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV not initialized")
	}
	if fn == nil {
		return fmt.Errorf("update fn required")
	}

	txn := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if errors.Is(err, goredis.Nil) {
			current = nil
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < casMaxRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis CAS contention on %q after %d attempts", key, casMaxRetries)
}

func (s *kv) Del(ctx context.Context, key string) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis KV not initialized")
	}
	return s.rdb.Del(ctx, key).Err()
}

func (s *kv) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
