package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// ErrNotFound is returned for unknown and expired sessions.
var ErrNotFound = port.ErrSessionNotFound

const DefaultTTL = 24 * time.Hour

// sessionRecord is the stored form of [domain.Session], shared by every
// backend.
type sessionRecord struct {
	ID              string            `json:"id"`
	FavoriteIDs     []int64           `json:"favorite_ids"`
	UpstreamCookies map[string]string `json:"upstream_cookies"`
	CartOpen        bool              `json:"cart_open"`
	Locale          string            `json:"locale"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toRecord(s *domain.Session) sessionRecord {
	return sessionRecord{
		ID:              s.ID,
		FavoriteIDs:     s.FavoriteIDs,
		UpstreamCookies: s.UpstreamCookies,
		CartOpen:        s.CartOpen,
		Locale:          s.Locale,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (r sessionRecord) toDomain() *domain.Session {
	s := &domain.Session{
		ID:              r.ID,
		FavoriteIDs:     r.FavoriteIDs,
		UpstreamCookies: r.UpstreamCookies,
		CartOpen:        r.CartOpen,
		Locale:          r.Locale,
		UpdatedAt:       r.UpdatedAt,
	}
	s.Cookies()
	return s
}

func marshalSession(s *domain.Session) ([]byte, error) {
	const op = "storage.marshalSession"
	b, err := json.Marshal(toRecord(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

func unmarshalSession(b []byte) (*domain.Session, error) {
	const op = "storage.unmarshalSession"
	var r sessionRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.toDomain(), nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
