package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type ResilienceConfig struct {
	AttemptTimeout  time.Duration
	MaxAttempts     uint
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BreakerFailures uint32        // consecutive failures that open the breaker
	BreakerCooldown time.Duration // time the breaker stays open
}

func DefaultResilience() ResilienceConfig {
	return ResilienceConfig{
		AttemptTimeout:  10 * time.Second,
		MaxAttempts:     3,
		InitialBackoff:  200 * time.Millisecond,
		MaxBackoff:      2 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Resilient bounds every call to the wrapped gateway with a timeout, retries
// transient failures with exponential backoff and stops calling a provider
// that keeps failing.
type Resilient struct {
	next    Gateway
	cfg     ResilienceConfig
	breaker *gobreaker.CircuitBreaker[*Confirmation]
	log     *zap.Logger
}

func NewResilient(next Gateway, cfg ResilienceConfig, log *zap.Logger) *Resilient {
	if log == nil {
		log = zap.NewNop()
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker[*Confirmation](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// declines are answers from a healthy provider
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Resilient{next: next, cfg: cfg, breaker: breaker, log: log}
}

func (r *Resilient) Authorize(ctx context.Context, order *domain.Order) (*Confirmation, error) {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialBackoff > 0 {
		b.InitialInterval = r.cfg.InitialBackoff
	}
	if r.cfg.MaxBackoff > 0 {
		b.MaxInterval = r.cfg.MaxBackoff
	}

	attempt := 0
	op := func() (*Confirmation, error) {
		attempt++
		conf, err := r.breaker.Execute(func() (*Confirmation, error) {
			return r.attempt(ctx, order)
		})
		if err == nil {
			return conf, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if !IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		r.log.Warn("payment attempt failed",
			zap.String("order_id", order.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return nil, err
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if r.cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(r.cfg.MaxAttempts))
	}
	return backoff.Retry(ctx, op, opts...)
}

func (r *Resilient) attempt(ctx context.Context, order *domain.Order) (*Confirmation, error) {
	if r.cfg.AttemptTimeout <= 0 {
		return r.next.Authorize(ctx, order)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
	defer cancel()
	return r.next.Authorize(attemptCtx, order)
}
