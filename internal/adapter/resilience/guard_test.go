package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastGuard(cfg GuardConfig) *Guard {
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return NewGuard(cfg, nil, nil)
}

func TestGuardRetriesThenSucceeds(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test", MaxRetries: 2})

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestGuardGivesUpAfterMaxRetries(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test", MaxRetries: 2})

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestGuardZeroRetriesCallsOnce(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test"})

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuardPermanentErrorStopsRetries(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test", MaxRetries: 5})

	calls := 0
	err := g.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errTransient)
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestGuardBreakerOpens(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test", BreakerFailures: 2, BreakerTimeout: time.Minute})

	calls := 0
	op := func(context.Context) error {
		calls++
		return errTransient
	}

	assert.Error(t, g.Do(context.Background(), op))
	assert.Error(t, g.Do(context.Background(), op))
	err := g.Do(context.Background(), op)

	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls)
}

func TestGuardHonoursCancelledContext(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test", MaxRetries: 10, RateLimit: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := g.Do(ctx, func(context.Context) error {
		calls++
		return errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestCallReturnsValue(t *testing.T) {
	g := fastGuard(GuardConfig{Name: "test", MaxRetries: 1})

	attempts := 0
	v, err := Call(context.Background(), g, func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
