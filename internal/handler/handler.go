// Package handler exposes the HTTP surface: checkout, coupon application,
// public and admin coupon listings, and order lookup. Request bodies decode
// into typed DTOs; anything non-conforming is rejected with 400 rather than
// coerced.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pasheon/boutique-backend/internal/domain/coupon"
	"github.com/pasheon/boutique-backend/internal/domain/order"
	"github.com/pasheon/boutique-backend/internal/domain/payment"
	"github.com/pasheon/boutique-backend/internal/domain/product"
)

// Handler wires the domain services into HTTP routes.
type Handler struct {
	evaluator *coupon.Evaluator
	coupons   coupon.Repository
	products  product.Repository
	orders    *order.Service
	payments  *payment.Service
	security  *Security
}

// New constructs a Handler with the required domain dependencies.
func New(
	evaluator *coupon.Evaluator,
	coupons coupon.Repository,
	products product.Repository,
	orders *order.Service,
	payments *payment.Service,
	security *Security,
) *Handler {
	return &Handler{
		evaluator: evaluator,
		coupons:   coupons,
		products:  products,
		orders:    orders,
		payments:  payments,
		security:  security,
	}
}

// Router builds the chi router for the full API surface. Admin routes sit
// behind the API key gate.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/checkout/create-order", h.CreatePaymentIntent)
	r.Post("/checkout", h.Checkout)

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Get("/coupons", h.ListPublicCoupons)
	r.Post("/coupons/apply", h.ApplyCoupon)

	r.Get("/orders/{phone}", h.OrdersByPhone)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.security.RequireAPIKey)
		r.Post("/coupons/add", h.AddCoupon)
		r.Get("/coupons", h.ListAllCoupons)
		r.Delete("/coupons/delete/{id}", h.DeleteCoupon)
	})

	return r
}
