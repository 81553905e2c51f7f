package domain

import (
	"maps"
	"time"
)

// A Session is the storefront view state of one browser session.
type Session struct {
	ID              string
	FavoriteIDs     FavoriteIDs
	UpstreamCookies UpstreamCookies
	CartOpen        bool
	Locale          string
	UpdatedAt       time.Time
}

// UpstreamCookies maps upstream cookie names to values. The upstream keys
// the cart and the favorites on its own session cookie.
type UpstreamCookies map[string]string

func (c UpstreamCookies) Clone() UpstreamCookies {
	out := make(UpstreamCookies, len(c))
	maps.Copy(out, c)
	return out
}

func NewSession(id string) *Session {
	return &Session{
		ID:              id,
		UpstreamCookies: make(UpstreamCookies),
	}
}

// Cookies returns the upstream cookies, allocating them on first use.
func (s *Session) Cookies() UpstreamCookies {
	if s.UpstreamCookies == nil {
		s.UpstreamCookies = make(UpstreamCookies)
	}
	return s.UpstreamCookies
}
