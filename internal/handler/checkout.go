package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pasheon/boutique-backend/internal/domain/order"
	"github.com/pasheon/boutique-backend/internal/domain/payment"
)

type createIntentRequest struct {
	TotalAmount int64 `json:"total_amount"`
}

type intentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreatePaymentIntent handles POST /checkout/create-order: it validates the
// requested amount and returns the gateway's intent object verbatim. Payment
// completes out-of-band; no confirmation linkage is kept here.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	intent, err := h.payments.CreateIntent(r.Context(), req.TotalAmount, "INR")
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			writeMessage(w, r, http.StatusBadRequest, "Invalid amount.")
			return
		}
		zctx.From(r.Context()).Error("create payment intent", zap.Error(err))
		writeMessage(w, r, http.StatusBadGateway, "Failed to create payment order.")
		return
	}

	writeJSON(w, r, http.StatusOK, intentResponse{
		ID:       intent.ID,
		Amount:   intent.Amount,
		Currency: intent.Currency,
		Receipt:  intent.Receipt,
		Status:   intent.Status,
	})
}

type checkoutRequest struct {
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Payment     string          `json:"payment"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Cart        []cartItem      `json:"cart"`
}

type cartItem struct {
	ID       int64           `json:"id"`
	Size     string          `json:"size,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type checkoutResponse struct {
	Success bool  `json:"success"`
	OrderID int64 `json:"order_id"`
}

// Checkout handles POST /checkout: it finalizes the order atomically and
// responds success once the transaction has committed, regardless of the
// confirmation email's fate.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}

	items := make([]order.LineItem, len(req.Cart))
	for i, item := range req.Cart {
		items[i] = order.LineItem{
			ProductID: item.ID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	orderID, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Payment:     req.Payment,
		TotalAmount: req.TotalAmount,
		Items:       items,
	})
	if err != nil {
		if errors.Is(err, order.ErrInvalidOrder) {
			writeMessage(w, r, http.StatusBadRequest, err.Error())
			return
		}
		zctx.From(r.Context()).Error("checkout failed", zap.Error(err))
		writeMessage(w, r, http.StatusInternalServerError, "Failed to process order.")
		return
	}

	writeJSON(w, r, http.StatusOK, checkoutResponse{Success: true, OrderID: orderID})
}
