package apiclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Enabled bool
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32
	OpenTimeout time.Duration
}

// breaker trips on transport errors and 5xx replies. A disabled breaker
// passes every call through.
type breaker struct {
	cb *gobreaker.CircuitBreaker[reply]
}

func newBreaker(cfg BreakerConfig) breaker {
	if !cfg.Enabled {
		return breaker{}
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	st := gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"op", "breaker.OnStateChange",
				"name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
	}
	return breaker{cb: gobreaker.NewCircuitBreaker[reply](st)}
}

func (b breaker) execute(fn func() (reply, error)) (reply, error) {
	if b.cb == nil {
		return fn()
	}

	rep, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return reply{}, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return rep, err
}
