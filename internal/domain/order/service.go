package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sentinel errors for checkout validation and persistence.
var (
	// ErrInvalidOrder wraps all precondition violations: missing customer
	// fields, empty cart, non-positive quantities or prices.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrPersistence indicates the transactional write failed and was rolled
	// back; no trace of the order remains in storage.
	ErrPersistence = errors.New("order could not be persisted")
)

// notifyTimeout bounds the detached confirmation send so an unresponsive
// mail server cannot pin a goroutine forever.
const notifyTimeout = 30 * time.Second

// Service is the checkout orchestrator: it validates the request, hands it
// to the transactional writer, and dispatches a best-effort confirmation
// after commit.
type Service struct {
	orders   Repository
	notifier Notifier
	lg       *zap.Logger

	// notifyWG tracks in-flight confirmation sends so shutdown (and tests)
	// can drain them. The checkout response never waits on it.
	notifyWG sync.WaitGroup
}

// NewService creates a checkout Service. notifier may be nil, in which case
// no confirmations are sent.
func NewService(orders Repository, notifier Notifier, lg *zap.Logger) *Service {
	return &Service{
		orders:   orders,
		notifier: notifier,
		lg:       lg,
	}
}

// CheckoutRequest holds the input for finalizing a checkout. Prices and
// quantities are trusted as submitted by the client; there is no server-side
// re-pricing against the catalog. That gap is inherited from the original
// storefront and kept deliberately.
type CheckoutRequest struct {
	Name        string
	Email       string
	Phone       string
	Address     string
	Payment     string
	Items       []LineItem
	TotalAmount decimal.Decimal
}

// Checkout validates the request, persists the order atomically, and fires
// the confirmation notification without awaiting it. It returns the order id
// only after the transaction has committed.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (int64, error) {
	o, err := s.buildOrder(req)
	if err != nil {
		return 0, err
	}

	id, err := s.orders.Create(ctx, o)
	if err != nil {
		return 0, errors.Wrap(ErrPersistence, err.Error())
	}
	o.ID = id

	s.dispatchNotification(o)
	return id, nil
}

// buildOrder checks every precondition before any storage is touched.
func (s *Service) buildOrder(req CheckoutRequest) (*Order, error) {
	required := []struct {
		field string
		value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"phone", req.Phone},
		{"address", req.Address},
		{"payment", req.Payment},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, errors.Wrapf(ErrInvalidOrder, "%s is required", f.field)
		}
	}
	if len(req.Items) == 0 {
		return nil, errors.Wrap(ErrInvalidOrder, "cart is empty")
	}

	if !req.TotalAmount.IsPositive() {
		return nil, errors.Wrap(ErrInvalidOrder, "total_amount must be greater than 0")
	}

	for i, item := range req.Items {
		switch {
		case item.ProductID <= 0:
			return nil, errors.Wrapf(ErrInvalidOrder, "item %d: product id is required", i)
		case item.Quantity <= 0:
			return nil, errors.Wrapf(ErrInvalidOrder, "item %d: quantity must be greater than 0", i)
		case !item.Price.IsPositive():
			return nil, errors.Wrapf(ErrInvalidOrder, "item %d: price must be greater than 0", i)
		}
	}

	return &Order{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Payment:     req.Payment,
		TotalAmount: req.TotalAmount,
		Items:       req.Items,
	}, nil
}

// dispatchNotification launches the confirmation send on a detached context.
// The send is tracked and its outcome logged, but the caller never waits.
func (s *Service) dispatchNotification(o *Order) {
	if s.notifier == nil {
		return
	}

	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.lg.Error("order confirmation panicked",
					zap.Int64("order_id", o.ID), zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.OrderPlaced(ctx, o); err != nil {
			s.lg.Warn("order confirmation failed",
				zap.Int64("order_id", o.ID), zap.Error(err))
			return
		}
		s.lg.Info("order confirmation sent", zap.Int64("order_id", o.ID))
	}()
}

// DrainNotifications blocks until all in-flight confirmation sends finish.
// Called during graceful shutdown.
func (s *Service) DrainNotifications() {
	s.notifyWG.Wait()
}

// ListByPhone returns a customer's orders, newest first, with line items
// joined to catalog names and images.
func (s *Service) ListByPhone(ctx context.Context, phone string) ([]Order, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, errors.Wrap(ErrInvalidOrder, "phone is required")
	}
	orders, err := s.orders.ListByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("list orders for phone %q: %w", phone, err)
	}
	return orders, nil
}
