package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/pasheon/boutique-backend/internal/domain/order"
)

type orderItemView struct {
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Size     string  `json:"size,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type orderView struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Payment     string          `json:"payment"`
	TotalAmount float64         `json:"total_amount"`
	CreatedAt   string          `json:"created_at"`
	Items       []orderItemView `json:"items"`
}

// OrdersByPhone handles GET /orders/{phone}: a customer's orders newest
// first, each with line items joined to catalog name and image.
func (h *Handler) OrdersByPhone(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	orders, err := h.orders.ListByPhone(r.Context(), phone)
	if err != nil {
		zctx.From(r.Context()).Error("orders by phone", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Internal server error.")
		return
	}

	out := make([]orderView, len(orders))
	for i, o := range orders {
		out[i] = toOrderView(o)
	}
	writeJSON(w, r, http.StatusOK, out)
}

func toOrderView(o order.Order) orderView {
	items := make([]orderItemView, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemView{
			Name:     item.ProductName,
			ImageURL: item.ImageURL,
			Size:     item.Size,
			Quantity: item.Quantity,
			Price:    item.Price.InexactFloat64(),
		}
	}
	return orderView{
		ID:          o.ID,
		Name:        o.Name,
		Email:       o.Email,
		Phone:       o.Phone,
		Address:     o.Address,
		Payment:     o.Payment,
		TotalAmount: o.TotalAmount.InexactFloat64(),
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		Items:       items,
	}
}
