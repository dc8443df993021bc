// Package notification delivers customer and staff notifications outside the
// request path. Delivery is best effort: callers never see a failure.
package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"storefront/internal/logger"
	"storefront/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindOrderPlaced        Kind = "order_placed"
	KindOrderStatusChanged Kind = "order_status_changed"
)

type Message struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Recipient string         `json:"recipient"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Dispatcher is fire-and-forget.
type Dispatcher interface {
	Notify(ctx context.Context, kind Kind, recipient string, payload map[string]any)
}

// Sender performs the actual delivery of one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// AsyncDispatcher hands every message to a Sender on its own goroutine with
// a context detached from the caller's cancellation.
type AsyncDispatcher struct {
	sender  Sender
	timeout time.Duration
	metrics *metrics.Registry
	wg      sync.WaitGroup
}

func NewAsyncDispatcher(sender Sender, timeout time.Duration, reg *metrics.Registry) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncDispatcher{sender: sender, timeout: timeout, metrics: reg}
}

func (d *AsyncDispatcher) Notify(ctx context.Context, kind Kind, recipient string, payload map[string]any) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notification"),
		zap.String("kind", string(kind)),
	)

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		log.Debug("no recipient, notification skipped")
		return
	}

	msg := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: recipient,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	d.metrics.Counter(metrics.NotificationsQueued).Inc()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.metrics.Counter(metrics.NotificationsFailed).Inc()
				log.Error("notification sender panicked", zap.Any("panic", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.metrics.Counter(metrics.NotificationsFailed).Inc()
			log.Warn("notification failed",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			return
		}

		d.metrics.Counter(metrics.NotificationsSent).Inc()
		log.Debug("notification sent", zap.String("message_id", msg.ID))
	}()
}

// Wait blocks until every in-flight message has been handled.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// LogSender writes messages to the application log. Used when no broker is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logger.FromCtx(ctx).Info("notification",
		zap.String("message_id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.String("recipient", msg.Recipient),
		zap.Any("payload", msg.Payload),
	)
	return nil
}
