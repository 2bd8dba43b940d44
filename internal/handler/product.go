package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/pasheon/boutique-backend/internal/domain/product"
)

type productView struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list products", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch products.")
		return
	}

	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = toProductView(p)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid product id.")
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "Product not found.")
			return
		}
		zctx.From(r.Context()).Error("get product", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch product.")
		return
	}

	writeJSON(w, r, http.StatusOK, toProductView(*p))
}

func toProductView(p product.Product) productView {
	return productView{
		ID:       p.ID,
		Name:     p.Name,
		ImageURL: p.ImageURL,
		Price:    p.Price.InexactFloat64(),
		Category: p.Category,
	}
}
