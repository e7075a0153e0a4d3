package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	redisclient "github.com/remodelai/remodel-backend/internal/clients/redis"
	"github.com/remodelai/remodel-backend/internal/platform/logger"
	"github.com/remodelai/remodel-backend/internal/types"
)

const (
	contextKeyPrefix = "context:"
	sessionKeyPrefix = "session:"
)

// ContextStore persists one ConversationContext and one message history per
// session, TTL-scoped. When the durable store is unavailable the store
// degrades to a bounded in-memory map for the life of the process; this is
// logged, never surfaced to callers.
type ContextStore interface {
	// GetOrCreate returns the stored context, or a fresh empty one on a miss.
	GetOrCreate(ctx context.Context, sessionID string) (*types.ConversationContext, error)

	// Save writes the context back, refreshing LastUpdated and the TTL.
	Save(ctx context.Context, conv *types.ConversationContext) error

	// Mutate runs fn inside a per-key atomic read-modify-write. Unrelated
	// sessions are never serialized against each other; a concurrent
	// double-submission on the same session cannot corrupt the record.
	Mutate(ctx context.Context, sessionID string, fn func(conv *types.ConversationContext) error) (*types.ConversationContext, error)

	AppendMessages(ctx context.Context, sessionID string, msgs ...types.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]types.ChatMessage, error)
}

type StoreConfig struct {
	TTL time.Duration
	// MaxMemoryEntries caps the in-memory fallback; oldest sessions are
	// evicted first once the cap is hit.
	MaxMemoryEntries int
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		TTL:              time.Hour,
		MaxMemoryEntries: 200,
	}
}

type contextStore struct {
	log *logger.Logger
	kv  redisclient.KV // nil when redis was never reachable
	cfg StoreConfig

	mu    sync.Mutex
	mem   map[string]memEntry
	locks map[string]*sync.Mutex
}

type memEntry struct {
	data    []byte
	touched time.Time
}

// NewContextStore accepts a nil KV: the store then runs memory-only from the
// start, which keeps local development working without redis.
func NewContextStore(baseLog *logger.Logger, kv redisclient.KV, cfg StoreConfig) ContextStore {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultStoreConfig().TTL
	}
	if cfg.MaxMemoryEntries <= 0 {
		cfg.MaxMemoryEntries = DefaultStoreConfig().MaxMemoryEntries
	}
	log := baseLog.With("service", "ContextStore")
	if kv == nil {
		log.Warn("durable store unavailable; using in-memory session storage")
	}
	return &contextStore{
		log:   log,
		kv:    kv,
		cfg:   cfg,
		mem:   map[string]memEntry{},
		locks: map[string]*sync.Mutex{},
	}
}

func (s *contextStore) GetOrCreate(ctx context.Context, sessionID string) (*types.ConversationContext, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	raw, ok := s.read(ctx, contextKeyPrefix+sessionID)
	if !ok {
		return types.NewConversationContext(sessionID), nil
	}
	conv, err := types.UnmarshalConversationContext(raw)
	if err != nil {
		s.log.Warn("stored context unreadable; starting fresh", "session_id", sessionID, "error", err)
		return types.NewConversationContext(sessionID), nil
	}
	conv.SessionID = sessionID
	return conv, nil
}

func (s *contextStore) Save(ctx context.Context, conv *types.ConversationContext) error {
	if conv == nil || conv.SessionID == "" {
		return fmt.Errorf("context with session id required")
	}
	conv.LastUpdated = time.Now().UTC()
	raw, err := types.MarshalConversationContext(conv)
	if err != nil {
		return err
	}
	s.write(ctx, contextKeyPrefix+conv.SessionID, raw)
	return nil
}

func (s *contextStore) Mutate(ctx context.Context, sessionID string, fn func(conv *types.ConversationContext) error) (*types.ConversationContext, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	if fn == nil {
		return nil, fmt.Errorf("mutate fn required")
	}
	key := contextKeyPrefix + sessionID

	apply := func(current []byte) ([]byte, *types.ConversationContext, error) {
		conv := types.NewConversationContext(sessionID)
		if len(current) > 0 {
			parsed, err := types.UnmarshalConversationContext(current)
			if err != nil {
				s.log.Warn("stored context unreadable during mutate; starting fresh", "session_id", sessionID, "error", err)
			} else {
				conv = parsed
				conv.SessionID = sessionID
			}
		}
		if err := fn(conv); err != nil {
			return nil, nil, err
		}
		conv.LastUpdated = time.Now().UTC()
		raw, err := types.MarshalConversationContext(conv)
		if err != nil {
			return nil, nil, err
		}
		return raw, conv, nil
	}

	if s.kv != nil {
		var out *types.ConversationContext
		err := s.kv.Update(ctx, key, s.cfg.TTL, func(current []byte) ([]byte, error) {
			raw, conv, err := apply(current)
			if err != nil {
				return nil, &mutateError{inner: err}
			}
			out = conv
			return raw, nil
		})
		if err == nil {
			return out, nil
		}
		var ctxErr *mutateError
		if errors.As(err, &ctxErr) {
			return nil, ctxErr.inner
		}
		s.log.Warn("redis mutate failed; falling back to memory", "session_id", sessionID, "error", err)
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	current, _ := s.memRead(key)
	raw, conv, err := apply(current)
	if err != nil {
		return nil, err
	}
	s.memWrite(key, raw)
	return conv, nil
}

// mutateError distinguishes a caller error inside fn from an infrastructure
// failure, so fn errors are not retried against the memory fallback.
type mutateError struct{ inner error }

func (e *mutateError) Error() string { return e.inner.Error() }

func (s *contextStore) AppendMessages(ctx context.Context, sessionID string, msgs ...types.ChatMessage) error {
	if sessionID == "" {
		return fmt.Errorf("session id required")
	}
	if len(msgs) == 0 {
		return nil
	}
	key := sessionKeyPrefix + sessionID

	if s.kv != nil {
		err := s.kv.Update(ctx, key, s.cfg.TTL, func(current []byte) ([]byte, error) {
			return appendHistory(current, msgs)
		})
		if err == nil {
			return nil
		}
		s.log.Warn("redis history append failed; falling back to memory", "session_id", sessionID, "error", err)
	}

	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	current, _ := s.memRead(key)
	raw, err := appendHistory(current, msgs)
	if err != nil {
		return err
	}
	s.memWrite(key, raw)
	return nil
}

func (s *contextStore) History(ctx context.Context, sessionID string) ([]types.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	raw, ok := s.read(ctx, sessionKeyPrefix+sessionID)
	if !ok {
		return []types.ChatMessage{}, nil
	}
	var out []types.ChatMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.Warn("stored history unreadable", "session_id", sessionID, "error", err)
		return []types.ChatMessage{}, nil
	}
	return out, nil
}

func appendHistory(current []byte, msgs []types.ChatMessage) ([]byte, error) {
	var history []types.ChatMessage
	if len(current) > 0 {
		if err := json.Unmarshal(current, &history); err != nil {
			history = nil
		}
	}
	history = append(history, msgs...)
	return json.Marshal(history)
}

// -------------------- storage primitives --------------------

func (s *contextStore) read(ctx context.Context, key string) ([]byte, bool) {
	if s.kv != nil {
		raw, err := s.kv.Get(ctx, key)
		if err == nil {
			return raw, true
		}
		if errors.Is(err, redisclient.ErrNotFound) {
			return nil, false
		}
		s.log.Warn("redis read failed; falling back to memory", "key", key, "error", err)
	}
	return s.memRead(key)
}

func (s *contextStore) write(ctx context.Context, key string, raw []byte) {
	if s.kv != nil {
		err := s.kv.SetWithTTL(ctx, key, raw, s.cfg.TTL)
		if err == nil {
			return
		}
		s.log.Warn("redis write failed; falling back to memory", "key", key, "error", err)
	}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()
	s.memWrite(key, raw)
}

func (s *contextStore) memRead(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.mem[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.touched) > s.cfg.TTL {
		delete(s.mem, key)
		return nil, false
	}
	return entry.data, true
}

func (s *contextStore) memWrite(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mem[key] = memEntry{data: raw, touched: time.Now()}
	s.evictLocked()
}

// evictLocked drops the least-recently-touched entries once the fallback map
// exceeds its cap. Requires s.mu held.
func (s *contextStore) evictLocked() {
	for len(s.mem) > s.cfg.MaxMemoryEntries {
		oldestKey := ""
		var oldest time.Time
		for k, e := range s.mem {
			if oldestKey == "" || e.touched.Before(oldest) {
				oldestKey = k
				oldest = e.touched
			}
		}
		delete(s.mem, oldestKey)
		s.log.Debug("evicted in-memory session entry", "key", oldestKey)
	}
}

func (s *contextStore) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}
