package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pasheon/boutique-backend/internal/domain/coupon"
)

const (
	findActiveCouponSQL = `SELECT id, code, discount_type, discount_value, min_cart_value,
			max_discount, expiry_date, active, created_at
		FROM coupons WHERE code = $1 AND active = TRUE`

	insertCouponSQL = `INSERT INTO coupons
			(code, discount_type, discount_value, min_cart_value, max_discount, expiry_date, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at`

	listCouponsSQL = `SELECT id, code, discount_type, discount_value, min_cart_value,
			max_discount, expiry_date, active, created_at
		FROM coupons ORDER BY created_at DESC`

	listActiveCouponsSQL = `SELECT id, code, discount_type, discount_value, min_cart_value,
			max_discount, expiry_date, active, created_at
		FROM coupons
		WHERE active = TRUE AND (expiry_date IS NULL OR expiry_date >= CURRENT_DATE)
		ORDER BY created_at DESC`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveByCode looks up an active coupon by its exact, case-sensitive
// code. Returns coupon.ErrInvalidCoupon when no matching active row exists.
// Expiry is not filtered here; the evaluator owns the date-only comparison.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, findActiveCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Create inserts a new coupon rule, defaulting it to active. Returns
// coupon.ErrDuplicateCode when the code already exists; the existing row is
// left untouched.
func (r *CouponRepository) Create(ctx context.Context, rule *coupon.Rule) error {
	err := r.pool.QueryRow(ctx, insertCouponSQL,
		rule.Code, string(rule.DiscountType), rule.Value, rule.MinCartValue,
		rule.MaxDiscount, rule.ExpiryDate,
	).Scan(&rule.ID, &rule.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", rule.Code, err)
	}
	rule.Active = true
	return nil
}

// List returns all coupons, most recently created first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	rules, err := pgx.CollectRows(rows, scanCouponRule)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return rules, nil
}

// ListActive returns active, non-expired coupons, filtered server-side.
func (r *CouponRepository) ListActive(ctx context.Context) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	rules, err := pgx.CollectRows(rows, scanCouponRule)
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	return rules, nil
}

// Delete removes the coupon with the given id, returning coupon.ErrNotFound
// when no row matched.
func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
	)
	err := row.Scan(&rule.ID, &rule.Code, &discountType, &rule.Value, &rule.MinCartValue,
		&rule.MaxDiscount, &rule.ExpiryDate, &rule.Active, &rule.CreatedAt)
	rule.DiscountType = coupon.DiscountType(discountType)
	return rule, err
}
