package payment

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
)

var numberPattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// Outage decides whether the simulated provider is down for one request.
type Outage interface {
	Down() bool
}

// RandomOutage fails Percent out of every hundred requests.
type RandomOutage struct {
	Percent int
}

func (r RandomOutage) Down() bool {
	return calcOutage(rand.Intn(100), r.Percent)
}

func calcOutage(roll, percent int) bool {
	return roll < percent
}

type MobileMoneyConfig struct {
	Delay          time.Duration // STK push round trip
	DeclineNumbers []string
	FailurePercent int
}

// MobileMoneySimulator mimics an STK push: it waits for the configured delay
// and approves every well-formed number that is not on the decline list.
type MobileMoneySimulator struct {
	delay    time.Duration
	declined map[string]struct{}
	outage   Outage
	now      func() time.Time
}

func NewMobileMoneySimulator(cfg MobileMoneyConfig) *MobileMoneySimulator {
	declined := make(map[string]struct{}, len(cfg.DeclineNumbers))
	for _, n := range cfg.DeclineNumbers {
		if n = NormalizeNumber(n); n != "" {
			declined[n] = struct{}{}
		}
	}
	return &MobileMoneySimulator{
		delay:    cfg.Delay,
		declined: declined,
		outage:   RandomOutage{Percent: cfg.FailurePercent},
		now:      time.Now,
	}
}

// WithOutage replaces the random outage source.
func (s *MobileMoneySimulator) WithOutage(o Outage) *MobileMoneySimulator {
	s.outage = o
	return s
}

func (s *MobileMoneySimulator) Authorize(ctx context.Context, order *domain.Order) (*Confirmation, error) {
	if order.PaymentMethod != domain.PaymentMethodMobileMoney {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, order.PaymentMethod)
	}
	number := NormalizeNumber(order.MobileMoneyPhone)
	if !numberPattern.MatchString(number) {
		return nil, ErrInvalidNumber
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.outage.Down() {
		return nil, ErrUnavailable
	}
	if _, ok := s.declined[number]; ok {
		return nil, ErrDeclined
	}

	now := s.now()
	return &Confirmation{
		TransactionID: fmt.Sprintf("MP%d", now.UnixMilli()),
		Method:        domain.PaymentMethodMobileMoney,
		Amount:        order.Total,
		AuthorizedAt:  now,
	}, nil
}

// NormalizeNumber strips the separators customers commonly type.
func NormalizeNumber(n string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(n))
}
