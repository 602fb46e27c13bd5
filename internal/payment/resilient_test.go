package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type scriptedGateway struct {
	mu    sync.Mutex
	errs  []error
	calls int
	wait  time.Duration
}

func (g *scriptedGateway) Authorize(ctx context.Context, order *domain.Order) (*Confirmation, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	g.mu.Unlock()

	if g.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.wait):
		}
	}
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	return &Confirmation{TransactionID: "MP1", Method: order.PaymentMethod}, nil
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fastResilience() ResilienceConfig {
	return ResilienceConfig{
		AttemptTimeout:  time.Second,
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		BreakerFailures: 100,
		BreakerCooldown: time.Minute,
	}
}

func TestResilient_RetriesTransient(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &scriptedGateway{errs: []error{ErrUnavailable, ErrUnavailable}}
	r := NewResilient(next, fastResilience(), nil)

	conf, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
	require.NoError(t, err)
	assert.Equal(t, "MP1", conf.TransactionID)
	assert.Equal(t, 3, next.Calls())
}

func TestResilient_GivesUpAfterMaxAttempts(t *testing.T) {
	next := &scriptedGateway{errs: []error{ErrUnavailable, ErrUnavailable, ErrUnavailable, nil}}
	r := NewResilient(next, fastResilience(), nil)

	_, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, next.Calls())
}

func TestResilient_DoesNotRetryDecline(t *testing.T) {
	next := &scriptedGateway{errs: []error{ErrDeclined}}
	r := NewResilient(next, fastResilience(), nil)

	_, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, 1, next.Calls())
}

func TestResilient_AttemptTimeoutIsRetried(t *testing.T) {
	cfg := fastResilience()
	cfg.AttemptTimeout = 10 * time.Millisecond
	next := &scriptedGateway{wait: time.Second}
	r := NewResilient(next, cfg, nil)

	_, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, next.Calls())
}

func TestResilient_CallerCancellationStops(t *testing.T) {
	next := &scriptedGateway{wait: time.Second}
	r := NewResilient(next, fastResilience(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Authorize(ctx, mobileOrder("0712345678"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.LessOrEqual(t, next.Calls(), 1)
}

func TestResilient_BreakerOpens(t *testing.T) {
	cfg := fastResilience()
	cfg.MaxAttempts = 1
	cfg.BreakerFailures = 2
	next := &scriptedGateway{errs: []error{ErrUnavailable, ErrUnavailable, nil}}
	r := NewResilient(next, cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
		require.ErrorIs(t, err, ErrUnavailable)
	}

	_, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, next.Calls(), "open breaker must not reach the provider")
}

func TestResilient_DeclinesDoNotTripBreaker(t *testing.T) {
	cfg := fastResilience()
	cfg.BreakerFailures = 1
	next := &scriptedGateway{errs: []error{ErrDeclined, ErrDeclined}}
	r := NewResilient(next, cfg, nil)

	_, _ = r.Authorize(context.Background(), mobileOrder("0712345678"))
	_, _ = r.Authorize(context.Background(), mobileOrder("0712345678"))
	conf, err := r.Authorize(context.Background(), mobileOrder("0712345678"))
	require.NoError(t, err)
	assert.NotNil(t, conf)
}
