package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/notification"
	"storefront/internal/product"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service advances orders through their lifecycle and serves order reads.
type Service interface {
	Transition(ctx context.Context, orderID uuid.UUID, target string, notes *string) (*Order, error)
	Order(ctx context.Context, orderID uuid.UUID) (*Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error)
	ReceiptByVerificationCode(ctx context.Context, code string) (*Order, error)
}

type service struct {
	repo     Repository
	stock    product.StockKeeper
	evicter  product.Evicter
	notifier notification.Dispatcher
	tx       db.Transactor
	metrics  *metrics.Registry
	now      func() time.Time
}

// NewService wires the status machine. evicter, notifier and reg may be nil.
func NewService(
	repo Repository,
	stock product.StockKeeper,
	evicter product.Evicter,
	notifier notification.Dispatcher,
	tx db.Transactor,
	reg *metrics.Registry,
) Service {
	return &service{
		repo:     repo,
		stock:    stock,
		evicter:  evicter,
		notifier: notifier,
		tx:       tx,
		metrics:  reg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Transition moves an order to target along an allowed edge. The status
// column and the appended event are written in the same transaction.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, target string, notes *string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Transition"),
		zap.String("order_id", orderID.String()),
		zap.String("target", target),
	)

	to, err := ParseStatus(target)
	if err != nil {
		return nil, err
	}
	notes = trimOptional(notes)

	var (
		updated  *Order
		from     Status
		released []string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status

		if err := CheckTransition(from, to); err != nil {
			return err
		}

		payment := o.PaymentStatus
		if effect, ok := to.PaymentEffect(); ok {
			payment = effect
		}
		if err := s.repo.UpdateStatus(ctx, orderID, to, payment); err != nil {
			return err
		}

		// Cancelling puts the reserved units back on the shelf.
		if to == StatusCancelled {
			lines, err := s.repo.ListLines(ctx, orderID)
			if err != nil {
				return err
			}
			released = released[:0]
			for _, l := range lines {
				if err := s.stock.Release(ctx, l.ProductID, l.Quantity); err != nil {
					return err
				}
				released = append(released, l.ProductID)
			}
		}

		note := notes
		if note == nil {
			auto := fmt.Sprintf(transitionNoteFormat, from, to)
			note = &auto
		}
		event := StatusEvent{ID: uuid.New(), OrderID: orderID, Status: to, Notes: note, CreatedAt: s.now()}
		if err := s.repo.InsertStatusEvent(ctx, &event); err != nil {
			return err
		}

		o.Status = to
		o.PaymentStatus = payment
		o.UpdatedAt = event.CreatedAt
		updated = o
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidTransition) || errors.Is(err, apperror.ErrNoOpTransition) {
			s.metrics.Counter(metrics.StatusRejected).Inc()
		}
		log.Info("transition rejected", zap.Error(err))
		return nil, err
	}

	s.metrics.Counter(metrics.StatusTransitions).Inc()
	log.Info("order status changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("payment_status", string(updated.PaymentStatus)),
	)

	if s.evicter != nil && len(released) > 0 {
		s.evicter.Evict(ctx, released...)
	}
	if s.notifier != nil && updated.CustomerEmail != nil {
		s.notifier.Notify(ctx, notification.KindOrderStatusChanged, *updated.CustomerEmail, map[string]any{
			"order_id":       updated.ID.String(),
			"order_number":   updated.OrderNumber,
			"from":           string(from),
			"status":         string(to),
			"payment_status": string(updated.PaymentStatus),
		})
	}

	return updated, nil
}

// Order returns the order with its lines, address and history.
func (s *service) Order(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]StatusEvent, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListStatusEvents(ctx, orderID)
}

// ReceiptByVerificationCode is the public lookup printed on receipts.
func (s *service) ReceiptByVerificationCode(ctx context.Context, code string) (*Order, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != verificationCodeLen {
		return nil, ErrOrderNotFound
	}

	o, err := s.repo.GetOrderByVerificationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.loadDetails(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *service) loadDetails(ctx context.Context, o *Order) error {
	lines, err := s.repo.ListLines(ctx, o.ID)
	if err != nil {
		return err
	}
	addr, err := s.repo.GetAddress(ctx, o.ID)
	if err != nil {
		return err
	}
	history, err := s.repo.ListStatusEvents(ctx, o.ID)
	if err != nil {
		return err
	}

	o.Lines = lines
	o.Address = addr
	o.History = history
	return nil
}
