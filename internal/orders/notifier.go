package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the notifier uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// NotifyFunc delivers an order confirmation to the customer.
type NotifyFunc func(ctx context.Context, ev OrderConfirmedEvent) error

// LogNotifier stands in for an email sender.
func LogNotifier(log *zap.Logger) NotifyFunc {
	return func(_ context.Context, ev OrderConfirmedEvent) error {
		log.Info("order confirmation sent",
			zap.String("order_id", ev.OrderID),
			zap.String("email", ev.Email),
			zap.String("total", ev.Total.StringFixed(2)),
			zap.String("currency", ev.Currency))
		return nil
	}
}

// Notifier consumes order.confirmed events and sends confirmations.
type Notifier struct {
	reader     MessageReader
	notify     NotifyFunc
	log        *zap.Logger
	retryDelay time.Duration
}

func NewNotifier(reader MessageReader, notify NotifyFunc, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{reader: reader, notify: notify, log: log, retryDelay: time.Second}
}

func (n *Notifier) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !n.processMessage(ctx) {
			select {
			case <-ctx.Done():
			case <-time.After(n.retryDelay):
			}
		}
	}
}

func (n *Notifier) Close() error {
	return n.reader.Close()
}

// processMessage reports false when the reader failed and the caller should
// back off before reading again.
func (n *Notifier) processMessage(ctx context.Context) bool {
	m, err := n.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		n.log.Warn("error reading message", zap.Error(err))
		return false
	}

	if err := n.handle(ctx, m); err != nil {
		n.log.Warn("failed to handle order event",
			zap.String("key", string(m.Key)),
			zap.Error(err))
	}
	return true
}

func (n *Notifier) handle(ctx context.Context, m kafka.Message) error {
	if eventType(m) != EventOrderConfirmed {
		return nil
	}

	var ev OrderConfirmedEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return fmt.Errorf("parse order event: %w", err)
	}
	return n.notify(ctx, ev)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
