package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.SessionStorage = (*MemoryStorage)(nil)

// A MemoryStorage keeps sessions in process memory. Sessions are stored
// encoded so callers never share a [domain.Session] value.
type MemoryStorage struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
	saves    int
}

// evictEvery is the number of saves between expired entry sweeps.
const evictEvery = 1024

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]memoryEntry),
		ttl:      ttlOrDefault(ttl),
		now:      time.Now,
	}
}

func (s *MemoryStorage) LoadSession(
	ctx context.Context, id string,
) (*domain.Session, error) {
	const op = "MemoryStorage.LoadSession"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	sess, err := unmarshalSession(e.data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sess, nil
}

func (s *MemoryStorage) SaveSession(
	ctx context.Context, sess *domain.Session,
) error {
	const op = "MemoryStorage.SaveSession"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	b, err := marshalSession(sess)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saves%evictEvery == 0 {
		s.evictExpired(now)
	}
	s.sessions[sess.ID] = memoryEntry{data: b, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStorage) Close() {
	const op = "MemoryStorage.Close"
	log := slog.With("op", op)

	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()

	log.Info("memory session storage is closed")
}

func (s *MemoryStorage) evictExpired(now time.Time) {
	for id, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, id)
		}
	}
}
