// Package resilience wraps outbound model API calls with rate limiting,
// bounded retries and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"alsrag/internal/adapter/metrics"
)

// ErrOpen is returned without calling the operation while the breaker is open.
var ErrOpen = gobreaker.ErrOpenState

// GuardConfig configures a Guard. Zero values disable the matching feature.
type GuardConfig struct {
	Name            string
	RateLimit       float64 // requests per second
	Burst           int
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BreakerFailures uint32 // consecutive failures that open the breaker
	BreakerTimeout  time.Duration
}

// Guard serialises nothing; it is safe for concurrent use.
type Guard struct {
	name       string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	initial    time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
}

func NewGuard(cfg GuardConfig, m *metrics.Metrics, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		name:       cfg.Name,
		maxRetries: cfg.MaxRetries,
		initial:    cfg.InitialBackoff,
		maxBackoff: cfg.MaxBackoff,
		logger:     logger.With(zap.String("guard", cfg.Name)),
	}
	if g.initial <= 0 {
		g.initial = 500 * time.Millisecond
	}
	if g.maxBackoff <= 0 {
		g.maxBackoff = 10 * time.Second
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.BreakerFailures > 0 {
		threshold := cfg.BreakerFailures
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Warn("circuit breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
				m.BreakerState(name, int(to))
			},
		})
	}

	return g
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the breaker opens,
// ctx ends, or MaxRetries retries have been spent.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	run := func() error {
		attempt++
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		err := g.execute(ctx, op)
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if attempt <= g.maxRetries {
			g.logger.Debug("retrying call", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}

	return backoff.Retry(run, backoff.WithContext(backoff.WithMaxRetries(g.policy(), uint64(max(g.maxRetries, 0))), ctx))
}

func (g *Guard) execute(ctx context.Context, op func(ctx context.Context) error) error {
	if g.breaker == nil {
		return op(ctx)
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, op(ctx)
	})
	return err
}

func (g *Guard) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.initial
	b.MaxInterval = g.maxBackoff
	b.MaxElapsedTime = 0
	return b
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, g *Guard, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
