package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pasheon/boutique-backend/internal/domain/auth"
	"github.com/pasheon/boutique-backend/internal/domain/coupon"
	"github.com/pasheon/boutique-backend/internal/domain/order"
	"github.com/pasheon/boutique-backend/internal/domain/payment"
	"github.com/pasheon/boutique-backend/internal/domain/product"
)

// --- Mock implementations ---

type mockCouponRepo struct {
	rules     map[string]*coupon.Rule
	all       []coupon.Rule
	active    []coupon.Rule
	createErr error
	deleteErr error
	created   *coupon.Rule
	deletedID int64
}

func (m *mockCouponRepo) FindActiveByCode(_ context.Context, code string) (*coupon.Rule, error) {
	r, ok := m.rules[code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return r, nil
}

func (m *mockCouponRepo) Create(_ context.Context, rule *coupon.Rule) error {
	if m.createErr != nil {
		return m.createErr
	}
	rule.ID = 101
	rule.Active = true
	rule.CreatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	m.created = rule
	return nil
}

func (m *mockCouponRepo) List(_ context.Context) ([]coupon.Rule, error)       { return m.all, nil }
func (m *mockCouponRepo) ListActive(_ context.Context) ([]coupon.Rule, error) { return m.active, nil }

func (m *mockCouponRepo) Delete(_ context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedID = id
	return nil
}

type mockOrderRepo struct {
	nextID    int64
	err       error
	lastOrder *order.Order
	byPhone   []order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.lastOrder = o
	return m.nextID, nil
}

func (m *mockOrderRepo) ListByPhone(_ context.Context, _ string) ([]order.Order, error) {
	return m.byPhone, m.err
}

type mockProductRepo struct {
	products []product.Product
	err      error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.err
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

type mockGateway struct {
	intent *payment.Intent
	err    error
}

func (m *mockGateway) CreateIntent(_ context.Context, _ int64, _ string) (*payment.Intent, error) {
	return m.intent, m.err
}

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, _ string) (*auth.APIKeyInfo, error) {
	return m.info, m.err
}

// --- Helpers ---

type deps struct {
	coupons  *mockCouponRepo
	products *mockProductRepo
	orders   *mockOrderRepo
	gateway  *mockGateway
	apikeys  *mockAPIKeyRepo
}

const (
	testAPIKey = "admin-key-1"
	testPepper = "pepper"
)

func newTestRouter(d deps) http.Handler {
	if d.coupons == nil {
		d.coupons = &mockCouponRepo{}
	}
	if d.products == nil {
		d.products = &mockProductRepo{}
	}
	if d.orders == nil {
		d.orders = &mockOrderRepo{nextID: 1}
	}
	if d.gateway == nil {
		d.gateway = &mockGateway{}
	}
	if d.apikeys == nil {
		d.apikeys = &mockAPIKeyRepo{
			info: &auth.APIKeyInfo{ID: 1, KeyHash: HashAPIKey(testAPIKey, []byte(testPepper)), Name: "test"},
		}
	}

	h := New(
		coupon.NewEvaluator(d.coupons),
		d.coupons,
		d.products,
		order.NewService(d.orders, nil, zap.NewNop()),
		payment.NewService(d.gateway),
		NewSecurity(d.apikeys, []byte(testPepper)),
	)
	return h.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// --- Checkout ---

func validCheckoutBody() map[string]any {
	return map[string]any{
		"name":         "Asha Rao",
		"email":        "asha@example.com",
		"phone":        "9876543210",
		"address":      "12 MG Road, Bengaluru",
		"payment":      "upi",
		"total_amount": 1300,
		"cart": []map[string]any{
			{"id": 1, "size": "M", "quantity": 2, "price": 500},
			{"id": 2, "quantity": 1, "price": 300},
		},
	}
}

func TestCheckout(t *testing.T) {
	repo := &mockOrderRepo{nextID: 77}
	router := newTestRouter(deps{orders: repo})

	rec := doJSON(t, router, http.MethodPost, "/checkout", validCheckoutBody(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(77), resp["order_id"])

	require.NotNil(t, repo.lastOrder)
	require.Len(t, repo.lastOrder.Items, 2)
	assert.Equal(t, "M", repo.lastOrder.Items[0].Size)
	assert.True(t, repo.lastOrder.TotalAmount.Equal(decimal.NewFromInt(1300)))
}

func TestCheckout_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing name", func(b map[string]any) { delete(b, "name") }},
		{"empty cart", func(b map[string]any) { b["cart"] = []any{} }},
		{"missing payment", func(b map[string]any) { b["payment"] = "" }},
		{"zero quantity", func(b map[string]any) {
			b["cart"] = []map[string]any{{"id": 1, "quantity": 0, "price": 500}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepo{nextID: 1}
			router := newTestRouter(deps{orders: repo})

			body := validCheckoutBody()
			tt.mutate(body)

			rec := doJSON(t, router, http.MethodPost, "/checkout", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, repo.lastOrder)
		})
	}
}

func TestCheckout_MalformedBody(t *testing.T) {
	router := newTestRouter(deps{})

	req := httptest.NewRequest(http.MethodPost, "/checkout", bytes.NewBufferString(`{"name": `))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_PersistenceFailure(t *testing.T) {
	repo := &mockOrderRepo{err: errors.New("connection reset")}
	router := newTestRouter(deps{orders: repo})

	rec := doJSON(t, router, http.MethodPost, "/checkout", validCheckoutBody(), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- Payment intent ---

func TestCreatePaymentIntent(t *testing.T) {
	gw := &mockGateway{intent: &payment.Intent{
		ID: "order_abc", Amount: 130000, Currency: "INR",
		Receipt: "receipt_order_1", Status: "created",
	}}
	router := newTestRouter(deps{gateway: gw})

	rec := doJSON(t, router, http.MethodPost, "/checkout/create-order",
		map[string]any{"total_amount": 130000}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "order_abc", resp["id"])
	assert.Equal(t, float64(130000), resp["amount"])
	assert.Equal(t, "INR", resp["currency"])
}

func TestCreatePaymentIntent_InvalidAmount(t *testing.T) {
	router := newTestRouter(deps{})

	rec := doJSON(t, router, http.MethodPost, "/checkout/create-order",
		map[string]any{"total_amount": 50}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePaymentIntent_GatewayDown(t *testing.T) {
	gw := &mockGateway{err: payment.ErrGatewayUnavailable}
	router := newTestRouter(deps{gateway: gw})

	rec := doJSON(t, router, http.MethodPost, "/checkout/create-order",
		map[string]any{"total_amount": 130000}, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// --- Coupons ---

func TestApplyCoupon(t *testing.T) {
	repo := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"SAVE10": {
			Code: "SAVE10", DiscountType: coupon.DiscountPercentage,
			Value: decimal.NewFromInt(10), MaxDiscount: decPtr(50), Active: true,
		},
	}}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodPost, "/coupons/apply",
		map[string]any{"coupon_code": "SAVE10", "cart_total": 1000}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(50), resp["discount"]) // capped at max_discount
	assert.Equal(t, float64(950), resp["final_total"])
	assert.Equal(t, "SAVE10", resp["coupon_code"])
}

func TestApplyCoupon_Rejections(t *testing.T) {
	yesterday := time.Now().AddDate(0, 0, -1)
	repo := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"OLD": {
			Code: "OLD", DiscountType: coupon.DiscountFlat,
			Value: decimal.NewFromInt(50), ExpiryDate: &yesterday, Active: true,
		},
		"MIN500": {
			Code: "MIN500", DiscountType: coupon.DiscountFlat,
			Value: decimal.NewFromInt(50), MinCartValue: decimal.NewFromInt(500), Active: true,
		},
	}}
	router := newTestRouter(deps{coupons: repo})

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{"unknown code", map[string]any{"coupon_code": "NOPE", "cart_total": 1000}, http.StatusNotFound},
		{"expired", map[string]any{"coupon_code": "OLD", "cart_total": 1000}, http.StatusBadRequest},
		{"below minimum", map[string]any{"coupon_code": "MIN500", "cart_total": 499}, http.StatusBadRequest},
		{"missing code", map[string]any{"cart_total": 1000}, http.StatusBadRequest},
		{"missing total", map[string]any{"coupon_code": "MIN500"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/coupons/apply", tt.body, nil)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestApplyCoupon_AtMinimumSucceeds(t *testing.T) {
	repo := &mockCouponRepo{rules: map[string]*coupon.Rule{
		"MIN500": {
			Code: "MIN500", DiscountType: coupon.DiscountFlat,
			Value: decimal.NewFromInt(50), MinCartValue: decimal.NewFromInt(500), Active: true,
		},
	}}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodPost, "/coupons/apply",
		map[string]any{"coupon_code": "MIN500", "cart_total": 500}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(50), resp["discount"])
	assert.Equal(t, float64(450), resp["final_total"])
}

func TestListPublicCoupons(t *testing.T) {
	repo := &mockCouponRepo{active: []coupon.Rule{
		{Code: "SAVE10", DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(10), Active: true},
	}}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodGet, "/coupons", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[[]map[string]any](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, "SAVE10", out[0]["coupon_code"])
	// Public shape exposes no id or active flag.
	assert.NotContains(t, out[0], "id")
	assert.NotContains(t, out[0], "is_active")
}

// --- Admin routes ---

func adminHeaders() map[string]string {
	return map[string]string{"api_key": testAPIKey}
}

func TestAddCoupon(t *testing.T) {
	repo := &mockCouponRepo{}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodPost, "/admin/coupons/add", map[string]any{
		"coupon_code":    "DIWALI25",
		"discount_type":  "percentage",
		"discount_value": 25,
		"min_cart_value": 999,
		"max_discount":   300,
		"expiry_date":    "2025-11-15",
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.NotNil(t, repo.created)
	assert.Equal(t, "DIWALI25", repo.created.Code)
	assert.Equal(t, coupon.DiscountPercentage, repo.created.DiscountType)
	require.NotNil(t, repo.created.ExpiryDate)
	assert.Equal(t, "2025-11-15", repo.created.ExpiryDate.Format("2006-01-02"))
}

func TestAddCoupon_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing code", map[string]any{"discount_type": "flat", "discount_value": 10}},
		{"missing type", map[string]any{"coupon_code": "X", "discount_value": 10}},
		{"bad type", map[string]any{"coupon_code": "X", "discount_type": "bogo", "discount_value": 10}},
		{"zero value", map[string]any{"coupon_code": "X", "discount_type": "flat", "discount_value": 0}},
		{"bad expiry", map[string]any{"coupon_code": "X", "discount_type": "flat", "discount_value": 10, "expiry_date": "15-11-2025"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(deps{})
			rec := doJSON(t, router, http.MethodPost, "/admin/coupons/add", tt.body, adminHeaders())
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAddCoupon_Duplicate(t *testing.T) {
	repo := &mockCouponRepo{createErr: coupon.ErrDuplicateCode}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodPost, "/admin/coupons/add", map[string]any{
		"coupon_code": "DIWALI25", "discount_type": "flat", "discount_value": 100,
	}, adminHeaders())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteCoupon(t *testing.T) {
	repo := &mockCouponRepo{}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodDelete, "/admin/coupons/delete/15", nil, adminHeaders())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(15), repo.deletedID)
}

func TestDeleteCoupon_NotFound(t *testing.T) {
	repo := &mockCouponRepo{deleteErr: coupon.ErrNotFound}
	router := newTestRouter(deps{coupons: repo})

	rec := doJSON(t, router, http.MethodDelete, "/admin/coupons/delete/99", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes_RequireAPIKey(t *testing.T) {
	router := newTestRouter(deps{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/admin/coupons/add"},
		{http.MethodGet, "/admin/coupons"},
		{http.MethodDelete, "/admin/coupons/delete/1"},
	}

	for _, p := range paths {
		rec := doJSON(t, router, p.method, p.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestAdminRoutes_WrongKey(t *testing.T) {
	apikeys := &mockAPIKeyRepo{err: errors.New("api key not found")}
	router := newTestRouter(deps{apikeys: apikeys})

	rec := doJSON(t, router, http.MethodGet, "/admin/coupons", nil,
		map[string]string{"api_key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Products ---

func TestListProducts(t *testing.T) {
	repo := &mockProductRepo{products: []product.Product{
		{ID: 1, Name: "Silk Saree", ImageURL: "/img/saree.jpg", Price: decimal.NewFromInt(1499), Category: "sarees"},
		{ID: 2, Name: "Dupatta", ImageURL: "/img/dupatta.jpg", Price: decimal.NewFromInt(649), Category: "accessories"},
	}}
	router := newTestRouter(deps{products: repo})

	rec := doJSON(t, router, http.MethodGet, "/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[[]productView](t, rec)
	require.Len(t, out, 2)
	assert.Equal(t, "Silk Saree", out[0].Name)
	assert.InDelta(t, 1499, out[0].Price, 0.001)
}

func TestGetProduct(t *testing.T) {
	repo := &mockProductRepo{products: []product.Product{
		{ID: 7, Name: "Denim Jacket", ImageURL: "/img/jacket.jpg", Price: decimal.NewFromInt(1899), Category: "outerwear"},
	}}
	router := newTestRouter(deps{products: repo})

	rec := doJSON(t, router, http.MethodGet, "/products/7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[productView](t, rec)
	assert.Equal(t, int64(7), out.ID)
	assert.Equal(t, "Denim Jacket", out.Name)

	missing := doJSON(t, router, http.MethodGet, "/products/99", nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	bad := doJSON(t, router, http.MethodGet, "/products/seven", nil, nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

// --- Orders by phone ---

func TestOrdersByPhone(t *testing.T) {
	repo := &mockOrderRepo{byPhone: []order.Order{{
		ID: 5, Name: "Asha Rao", Phone: "9876543210",
		TotalAmount: decimal.NewFromInt(1300),
		CreatedAt:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Items: []order.LineItem{
			{ProductID: 1, ProductName: "Silk Saree", ImageURL: "/img/saree.jpg", Size: "M", Quantity: 2, Price: decimal.NewFromInt(500)},
			{ProductID: 2, ProductName: "Dupatta", Quantity: 1, Price: decimal.NewFromInt(300)},
		},
	}}}
	router := newTestRouter(deps{orders: repo})

	rec := doJSON(t, router, http.MethodGet, "/orders/9876543210", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[[]orderView](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, int64(5), out[0].ID)
	require.Len(t, out[0].Items, 2)
	assert.Equal(t, "Silk Saree", out[0].Items[0].Name)
	assert.Equal(t, "/img/saree.jpg", out[0].Items[0].ImageURL)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
