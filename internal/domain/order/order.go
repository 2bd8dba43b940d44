package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a finalized checkout: customer details, payment method
// tag, and the client-submitted total. Orders are immutable once written.
type Order struct {
	ID          int64
	Name        string
	Email       string
	Phone       string
	Address     string
	Payment     string
	TotalAmount decimal.Decimal
	Items       []LineItem
	CreatedAt   time.Time
}

// LineItem is one cart entry. Price is the client-submitted unit price;
// checkout does not re-price against the catalog (see Service.Checkout).
type LineItem struct {
	ProductID int64
	Size      string
	Quantity  int
	Price     decimal.Decimal
	// ProductName and ImageURL are populated on reads, joined from the
	// catalog. They are ignored on writes.
	ProductName string
	ImageURL    string
}

// Repository defines persistence operations for orders. Create must write
// the order header and all items in one atomic unit: either the full order
// becomes visible or nothing does.
type Repository interface {
	Create(ctx context.Context, o *Order) (int64, error)
	ListByPhone(ctx context.Context, phone string) ([]Order, error)
}

// Notifier delivers an order confirmation. Implementations are best-effort:
// the checkout outcome never depends on them.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order) error
}
