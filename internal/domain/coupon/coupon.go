package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFlat subtracts a fixed amount from the cart total.
	DiscountFlat DiscountType = "flat"
	// DiscountPercentage applies a percentage-based discount to the cart
	// total, optionally clamped to the rule's MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found among the
	// currently active coupons.
	ErrInvalidCoupon = errors.New("invalid or inactive coupon")
	// ErrExpired is returned when a coupon's expiry date is strictly before
	// the current date.
	ErrExpired = errors.New("coupon has expired")
	// ErrBelowMinimum is returned when the cart total does not reach the
	// coupon's minimum cart value.
	ErrBelowMinimum = errors.New("cart total below coupon minimum")
	// ErrDuplicateCode is returned when creating a coupon whose code already
	// exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrNotFound is returned when a coupon id does not match any row.
	ErrNotFound = errors.New("coupon not found")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Codes are case-sensitive. A rule with an expiry date in the past is
// logically inactive regardless of its Active flag.
type Rule struct {
	ID           int64
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinCartValue decimal.Decimal
	// MaxDiscount caps a percentage discount. Nil means uncapped. It has no
	// effect on flat discounts.
	MaxDiscount *decimal.Decimal
	// ExpiryDate is compared date-only: a coupon expiring today is still
	// valid through end of day. Nil means no expiry.
	ExpiryDate *time.Time
	Active     bool
	CreatedAt  time.Time
}

// Discount is the outcome of applying a rule to a cart total. Amounts are
// exact decimals; rounding to whole currency units happens once, at the edge.
type Discount struct {
	Amount     decimal.Decimal
	FinalTotal decimal.Decimal
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	// FindActiveByCode returns the active rule for the exact code, or
	// ErrInvalidCoupon when no active rule matches.
	FindActiveByCode(ctx context.Context, code string) (*Rule, error)
	// Create inserts a new rule and returns ErrDuplicateCode on collision.
	// The generated id and creation time are written back into rule.
	Create(ctx context.Context, rule *Rule) error
	// List returns all rules, most recently created first.
	List(ctx context.Context) ([]Rule, error)
	// ListActive returns active, non-expired rules, most recent first.
	ListActive(ctx context.Context) ([]Rule, error)
	// Delete removes a rule by id, returning ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error
}
