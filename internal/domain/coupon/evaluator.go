package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount the rule yields for the given cart total.
// It is pure: no persistence, every call with the same inputs returns the
// same result.
//
// Eligibility: the cart total must reach the rule's minimum, otherwise
// ErrBelowMinimum. Expiry is not checked here; see Evaluator.Evaluate.
func Apply(rule *Rule, cartTotal decimal.Decimal) (Discount, error) {
	if cartTotal.LessThan(rule.MinCartValue) {
		return Discount{}, ErrBelowMinimum
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountFlat:
		amount = rule.Value
	case DiscountPercentage:
		amount = cartTotal.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount != nil && amount.GreaterThan(*rule.MaxDiscount) {
			amount = *rule.MaxDiscount
		}
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	// The discount can never drive the total negative.
	final := cartTotal.Sub(amount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Discount{Amount: amount, FinalTotal: final}, nil
}

// Evaluator resolves a coupon code against the registry and applies it to a
// cart total. It operates on whatever snapshot the lookup returned; no lock
// is held across the read and the apply.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate looks up the active rule for code, checks expiry, and applies it
// to cartTotal. It returns ErrInvalidCoupon, ErrExpired, or ErrBelowMinimum
// for the corresponding rejections.
func (e *Evaluator) Evaluate(ctx context.Context, code string, cartTotal decimal.Decimal) (*Discount, error) {
	rule, err := e.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if Expired(rule, e.now()) {
		return nil, ErrExpired
	}

	d, err := Apply(rule, cartTotal)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

// Expired reports whether the rule's expiry date has passed relative to now.
// The comparison is date-only: a coupon expiring today remains valid through
// end of day.
func Expired(rule *Rule, now time.Time) bool {
	if rule.ExpiryDate == nil {
		return false
	}
	ey, em, ed := rule.ExpiryDate.Date()
	ny, nm, nd := now.Date()
	expiry := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return expiry.Before(today)
}
