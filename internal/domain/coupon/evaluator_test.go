package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule *Rule
	err  error
}

func (m *mockCouponRepo) FindActiveByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}
func (m *mockCouponRepo) Create(_ context.Context, _ *Rule) error  { return nil }
func (m *mockCouponRepo) List(_ context.Context) ([]Rule, error)   { return nil, nil }
func (m *mockCouponRepo) ListActive(_ context.Context) ([]Rule, error) {
	return nil, nil
}
func (m *mockCouponRepo) Delete(_ context.Context, _ int64) error { return nil }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		rule      Rule
		cartTotal decimal.Decimal
		wantAmt   decimal.Decimal
		wantFinal decimal.Decimal
		wantErr   error
	}{
		{
			name:      "flat discount",
			rule:      Rule{DiscountType: DiscountFlat, Value: dec(100)},
			cartTotal: dec(1000),
			wantAmt:   dec(100),
			wantFinal: dec(900),
		},
		{
			name:      "percentage discount",
			rule:      Rule{DiscountType: DiscountPercentage, Value: dec(10)},
			cartTotal: dec(300),
			wantAmt:   dec(30),
			wantFinal: dec(270),
		},
		{
			name:      "percentage clamped to max discount",
			rule:      Rule{DiscountType: DiscountPercentage, Value: dec(10), MaxDiscount: decPtr(50)},
			cartTotal: dec(1000),
			wantAmt:   dec(50),
			wantFinal: dec(950),
		},
		{
			name:      "percentage under cap keeps computed amount",
			rule:      Rule{DiscountType: DiscountPercentage, Value: dec(10), MaxDiscount: decPtr(50)},
			cartTotal: dec(300),
			wantAmt:   dec(30),
			wantFinal: dec(270),
		},
		{
			name:      "max discount ignored for flat kind",
			rule:      Rule{DiscountType: DiscountFlat, Value: dec(200), MaxDiscount: decPtr(50)},
			cartTotal: dec(1000),
			wantAmt:   dec(200),
			wantFinal: dec(800),
		},
		{
			name:      "flat discount larger than total floors at zero",
			rule:      Rule{DiscountType: DiscountFlat, Value: dec(500)},
			cartTotal: dec(300),
			wantAmt:   dec(500),
			wantFinal: dec(0),
		},
		{
			name:      "below minimum cart value",
			rule:      Rule{DiscountType: DiscountFlat, Value: dec(50), MinCartValue: dec(500)},
			cartTotal: dec(499),
			wantErr:   ErrBelowMinimum,
		},
		{
			name:      "exactly at minimum cart value succeeds",
			rule:      Rule{DiscountType: DiscountFlat, Value: dec(50), MinCartValue: dec(500)},
			cartTotal: dec(500),
			wantAmt:   dec(50),
			wantFinal: dec(450),
		},
		{
			name:      "unknown discount type",
			rule:      Rule{DiscountType: "bogus", Value: dec(5)},
			cartTotal: dec(100),
			wantErr:   errors.New("unsupported discount type"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(&tt.rule, tt.cartTotal)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrBelowMinimum) {
					require.ErrorIs(t, err, ErrBelowMinimum)
				} else {
					require.Error(t, err)
				}
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmt.Equal(got.Amount),
				"expected discount %s, got %s", tt.wantAmt, got.Amount)
			assert.True(t, tt.wantFinal.Equal(got.FinalTotal),
				"expected final total %s, got %s", tt.wantFinal, got.FinalTotal)
		})
	}
}

func TestApply_Idempotent(t *testing.T) {
	rule := Rule{DiscountType: DiscountPercentage, Value: dec(15), MaxDiscount: decPtr(120)}

	first, err := Apply(&rule, dec(900))
	require.NoError(t, err)
	second, err := Apply(&rule, dec(900))
	require.NoError(t, err)

	assert.True(t, first.Amount.Equal(second.Amount))
	assert.True(t, first.FinalTotal.Equal(second.FinalTotal))
}

func TestEvaluator_Evaluate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := fixedNow.AddDate(0, 0, -1)
	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	tomorrow := fixedNow.AddDate(0, 0, 1)

	tests := []struct {
		name      string
		repo      *mockCouponRepo
		cartTotal decimal.Decimal
		wantAmt   decimal.Decimal
		wantErr   error
	}{
		{
			name: "valid code returns discount",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "SAVE10", DiscountType: DiscountPercentage, Value: dec(10),
			}},
			cartTotal: dec(1000),
			wantAmt:   dec(100),
		},
		{
			name:      "unknown code",
			repo:      &mockCouponRepo{err: ErrInvalidCoupon},
			cartTotal: dec(1000),
			wantErr:   ErrInvalidCoupon,
		},
		{
			name: "expired yesterday",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "OLD", DiscountType: DiscountFlat, Value: dec(50),
				ExpiryDate: &yesterday,
			}},
			cartTotal: dec(1000),
			wantErr:   ErrExpired,
		},
		{
			name: "expiring today is still valid",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "TODAY", DiscountType: DiscountFlat, Value: dec(50),
				ExpiryDate: &today,
			}},
			cartTotal: dec(1000),
			wantAmt:   dec(50),
		},
		{
			name: "expiring tomorrow is valid",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "SOON", DiscountType: DiscountFlat, Value: dec(50),
				ExpiryDate: &tomorrow,
			}},
			cartTotal: dec(1000),
			wantAmt:   dec(50),
		},
		{
			name: "below minimum surfaces ErrBelowMinimum",
			repo: &mockCouponRepo{rule: &Rule{
				Code: "MIN500", DiscountType: DiscountFlat, Value: dec(50),
				MinCartValue: dec(500),
			}},
			cartTotal: dec(499),
			wantErr:   ErrBelowMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(tt.repo)
			e.now = func() time.Time { return fixedNow }

			got, err := e.Evaluate(context.Background(), "CODE", tt.cartTotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantAmt.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmt, got.Amount)
		})
	}
}
