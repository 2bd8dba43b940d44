package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pasheon/boutique-backend/internal/domain/coupon"
)

// expiryDateLayout is the wire format for coupon expiry dates.
const expiryDateLayout = "2006-01-02"

type applyCouponRequest struct {
	CouponCode string          `json:"coupon_code"`
	CartTotal  decimal.Decimal `json:"cart_total"`
}

type applyCouponResponse struct {
	Success    bool   `json:"success"`
	Discount   int64  `json:"discount"`
	FinalTotal int64  `json:"final_total"`
	CouponCode string `json:"coupon_code"`
}

// ApplyCoupon handles POST /coupons/apply. Amounts in the response are
// rounded to whole currency units exactly once, here at the edge.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.CouponCode == "" || !req.CartTotal.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "Coupon code and cart total are required.")
		return
	}

	d, err := h.evaluator.Evaluate(r.Context(), req.CouponCode, req.CartTotal)
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrInvalidCoupon):
			writeError(w, r, http.StatusNotFound, "Invalid or inactive coupon.")
		case errors.Is(err, coupon.ErrExpired):
			writeError(w, r, http.StatusBadRequest, "Coupon has expired.")
		case errors.Is(err, coupon.ErrBelowMinimum):
			writeError(w, r, http.StatusBadRequest, "Cart total below coupon minimum.")
		default:
			zctx.From(r.Context()).Error("apply coupon", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "Server error while applying coupon.")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, applyCouponResponse{
		Success:    true,
		Discount:   d.Amount.Round(0).IntPart(),
		FinalTotal: d.FinalTotal.Round(0).IntPart(),
		CouponCode: req.CouponCode,
	})
}

// couponSummary is the public advertisement shape: no id, no active flag.
type couponSummary struct {
	CouponCode    string   `json:"coupon_code"`
	DiscountType  string   `json:"discount_type"`
	DiscountValue float64  `json:"discount_value"`
	MinCartValue  float64  `json:"min_cart_value"`
	MaxDiscount   *float64 `json:"max_discount"`
	ExpiryDate    *string  `json:"expiry_date"`
}

// ListPublicCoupons handles GET /coupons: only active, non-expired coupons,
// newest first. The filter is applied server-side by the registry.
func (h *Handler) ListPublicCoupons(w http.ResponseWriter, r *http.Request) {
	rules, err := h.coupons.ListActive(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list public coupons", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch coupons.")
		return
	}

	out := make([]couponSummary, len(rules))
	for i, rule := range rules {
		out[i] = couponSummary{
			CouponCode:    rule.Code,
			DiscountType:  string(rule.DiscountType),
			DiscountValue: rule.Value.InexactFloat64(),
			MinCartValue:  rule.MinCartValue.InexactFloat64(),
			MaxDiscount:   decimalPtrToFloat(rule.MaxDiscount),
			ExpiryDate:    formatExpiry(rule.ExpiryDate),
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

type addCouponRequest struct {
	CouponCode    string           `json:"coupon_code"`
	DiscountType  string           `json:"discount_type"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MinCartValue  decimal.Decimal  `json:"min_cart_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`
	ExpiryDate    *string          `json:"expiry_date"`
}

// AddCoupon handles POST /admin/coupons/add.
func (h *Handler) AddCoupon(w http.ResponseWriter, r *http.Request) {
	var req addCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	kind := coupon.DiscountType(req.DiscountType)
	switch {
	case req.CouponCode == "" || req.DiscountType == "" || !req.DiscountValue.IsPositive():
		writeError(w, r, http.StatusBadRequest, "Required fields missing.")
		return
	case kind != coupon.DiscountFlat && kind != coupon.DiscountPercentage:
		writeError(w, r, http.StatusBadRequest, "discount_type must be 'flat' or 'percentage'.")
		return
	}

	var expiry *time.Time
	if req.ExpiryDate != nil && *req.ExpiryDate != "" {
		t, err := time.Parse(expiryDateLayout, *req.ExpiryDate)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "expiry_date must be YYYY-MM-DD.")
			return
		}
		expiry = &t
	}

	rule := &coupon.Rule{
		Code:         req.CouponCode,
		DiscountType: kind,
		Value:        req.DiscountValue,
		MinCartValue: req.MinCartValue,
		MaxDiscount:  req.MaxDiscount,
		ExpiryDate:   expiry,
	}
	if err := h.coupons.Create(r.Context(), rule); err != nil {
		if errors.Is(err, coupon.ErrDuplicateCode) {
			writeError(w, r, http.StatusConflict, "Coupon code already exists.")
			return
		}
		zctx.From(r.Context()).Error("add coupon", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Server error while adding coupon.")
		return
	}

	writeJSON(w, r, http.StatusCreated, map[string]string{"message": "Coupon added successfully."})
}

// couponRow is the full admin shape, mirroring the stored row.
type couponRow struct {
	ID            int64    `json:"id"`
	CouponCode    string   `json:"coupon_code"`
	DiscountType  string   `json:"discount_type"`
	DiscountValue float64  `json:"discount_value"`
	MinCartValue  float64  `json:"min_cart_value"`
	MaxDiscount   *float64 `json:"max_discount"`
	ExpiryDate    *string  `json:"expiry_date"`
	IsActive      bool     `json:"is_active"`
	CreatedAt     string   `json:"created_at"`
}

// ListAllCoupons handles GET /admin/coupons: every row, newest first.
func (h *Handler) ListAllCoupons(w http.ResponseWriter, r *http.Request) {
	rules, err := h.coupons.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list coupons", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Server error while fetching coupons.")
		return
	}

	out := make([]couponRow, len(rules))
	for i, rule := range rules {
		out[i] = couponRow{
			ID:            rule.ID,
			CouponCode:    rule.Code,
			DiscountType:  string(rule.DiscountType),
			DiscountValue: rule.Value.InexactFloat64(),
			MinCartValue:  rule.MinCartValue.InexactFloat64(),
			MaxDiscount:   decimalPtrToFloat(rule.MaxDiscount),
			ExpiryDate:    formatExpiry(rule.ExpiryDate),
			IsActive:      rule.Active,
			CreatedAt:     rule.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

// DeleteCoupon handles DELETE /admin/coupons/delete/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid coupon id.")
		return
	}

	if err := h.coupons.Delete(r.Context(), id); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Coupon not found.")
			return
		}
		zctx.From(r.Context()).Error("delete coupon", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Server error while deleting coupon.")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Coupon deleted successfully."})
}

func decimalPtrToFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

func formatExpiry(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(expiryDateLayout)
	return &s
}
