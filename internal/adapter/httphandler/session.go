package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/niksmo/storefront/internal/adapter/render"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

const (
	DefaultSessionCookie = "storefront_sid"

	sessionSaveTimeout = 2 * time.Second
)

type sessionCtxKey struct{}

func withSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// sessionFrom returns the request session. Outside of [Sessions.Middleware]
// it returns a throwaway session.
func sessionFrom(ctx context.Context) *domain.Session {
	if sess, ok := ctx.Value(sessionCtxKey{}).(*domain.Session); ok {
		return sess
	}
	return domain.NewSession("")
}

type SessionConfig struct {
	CookieName string
	// Secure marks the cookie for HTTPS only.
	Secure bool
}

// Sessions loads the session named by the session cookie before the
// request and saves it after.
type Sessions struct {
	storage    port.SessionStorage
	catalog    render.Catalog
	cookieName string
	secure     bool
	now        func() time.Time
}

func NewSessions(
	storage port.SessionStorage, catalog render.Catalog, cfg SessionConfig,
) Sessions {
	name := cfg.CookieName
	if name == "" {
		name = DefaultSessionCookie
	}
	return Sessions{
		storage:    storage,
		catalog:    catalog,
		cookieName: name,
		secure:     cfg.Secure,
		now:        time.Now,
	}
}

func (s Sessions) Middleware(next http.Handler) http.Handler {
	hf := func(w http.ResponseWriter, r *http.Request) {
		sess, isNew := s.load(r)
		if isNew {
			// No Max-Age: the cookie ends with the browser session.
			http.SetCookie(w, &http.Cookie{
				Name:     s.cookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		if sess.Locale == "" {
			sess.Locale = s.catalog.Match(r.Header.Get("Accept-Language"))
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))

		s.save(r.Context(), sess)
	}
	return http.HandlerFunc(hf)
}

func (s Sessions) load(r *http.Request) (sess *domain.Session, isNew bool) {
	const op = "Sessions.load"
	log := slog.With("op", op)

	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return s.create(), true
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		log.Warn("malformed session cookie")
		return s.create(), true
	}

	sess, err = s.storage.LoadSession(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, port.ErrSessionNotFound) {
			log.Error("failed to load session", "err", err)
		}
		return s.create(), true
	}
	return sess, false
}

func (s Sessions) create() *domain.Session {
	return domain.NewSession(uuid.NewString())
}

// save outlives the request context so a client disconnect does not drop
// the session update.
func (s Sessions) save(ctx context.Context, sess *domain.Session) {
	const op = "Sessions.save"

	ctx, cancel := context.WithTimeout(
		context.WithoutCancel(ctx), sessionSaveTimeout,
	)
	defer cancel()

	sess.UpdatedAt = s.now().UTC()
	if err := s.storage.SaveSession(ctx, sess); err != nil {
		slog.Error("failed to save session", "op", op, "err", err)
	}
}
