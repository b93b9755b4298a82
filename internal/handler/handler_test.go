package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// --- In-memory storage ---

type memStore struct {
	mu       sync.Mutex
	products map[string]product.Product
	carts    map[string]cart.Cart
	orders   []order.Order
	failList error
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]product.Product),
		carts:    make(map[string]cart.Cart),
	}
}

type memProducts struct{ *memStore }

func (m memProducts) List(context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

func (m memProducts) Update(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m memProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

type memCarts struct{ *memStore }

func (m memCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(userID)
}

func (m *memStore) get(userID string) (*cart.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	c.Items = c.Snapshot()
	return &c, nil
}

func (m memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Items = c.Snapshot()
	m.carts[c.UserID] = cp
	return nil
}

func (m memCarts) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

type memOrders struct{ *memStore }

func (m memOrders) Checkout(_ context.Context, userID string, place order.PlaceFunc) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		c = nil
	}
	o, err := place(c)
	if err != nil {
		return nil, err
	}
	m.orders = append(m.orders, *o)
	delete(m.carts, userID)
	return o, nil
}

func (m memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, *o)
	return nil
}

func (m memOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for i := len(m.orders) - 1; i >= 0; i-- {
		if m.orders[i].UserID == userID {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m memOrders) UpdateStatus(_ context.Context, id string, from, to order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id && m.orders[i].Status == from {
			m.orders[i].Status = to
			return nil
		}
	}
	return order.ErrOrderNotFound
}

// --- Helpers ---

func newTestServer(t *testing.T) (*memStore, http.Handler) {
	t.Helper()
	store := newMemStore()
	orders, err := order.NewService(memOrders{store}, memOrders{store}, order.Options{})
	require.NoError(t, err)

	h := New(Config{ImageBaseURL: "https://cdn.example.com/"},
		product.NewService(memProducts{store}),
		cart.NewService(memCarts{store}, memProducts{store}),
		orders,
	)
	return store, h.Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// fields decodes the top-level scalar fields of a JSON object response.
func fields(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			s, err := d.Str()
			out[key] = s
			return err
		case jx.Number:
			n, err := d.Num()
			out[key] = n.String()
			return err
		default:
			raw, err := d.Raw()
			out[key] = raw.String()
			return err
		}
	})
	require.NoError(t, err, w.Body.String())
	return out
}

func addToCart(t *testing.T, h http.Handler, userID, productID, price string) {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/cart/"+userID+"/add",
		`{"productId":"`+productID+`","name":"Item `+productID+`","offerPrice":`+price+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// --- Tests ---

func TestProductLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/addproduct", `{
		"name": "Pixel 9",
		"category": "Mobiles",
		"originalPrice": "79,999.00",
		"offerPrice": 74999.5,
		"rating": 4.5,
		"bestseller": true,
		"imageUrl": "/images/pixel.png"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := fields(t, w)
	id := created["id"]
	require.NotEmpty(t, id)
	assert.Equal(t, "79999", created["originalPrice"])
	assert.Equal(t, "74999.5", created["offerPrice"])
	assert.Equal(t, "4.5", created["rating"])
	assert.Equal(t, "true", created["bestseller"])
	assert.Equal(t, "https://cdn.example.com/images/pixel.png", created["imageUrl"])

	w = do(t, h, http.MethodGet, "/api/product/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pixel 9", fields(t, w)["name"])

	w = do(t, h, http.MethodPut, "/api/updateproduct/"+id, `{"name":"Pixel 9 Pro","offerPrice":"84,999"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := fields(t, w)
	assert.Equal(t, "Pixel 9 Pro", updated["name"])
	assert.Equal(t, "84999", updated["offerPrice"])
	assert.Equal(t, "Mobiles", updated["category"])
	assert.Equal(t, "79999", updated["originalPrice"])
	assert.Equal(t, "true", updated["bestseller"])
	assert.Equal(t, "https://cdn.example.com/images/pixel.png", updated["imageUrl"])

	w = do(t, h, http.MethodGet, "/api/product/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://cdn.example.com/images/pixel.png", fields(t, w)["imageUrl"])
	assert.Equal(t, "Mobiles", fields(t, w)["category"])

	w = do(t, h, http.MethodGet, "/api/productlist", "")
	require.Equal(t, http.StatusOK, w.Code)
	var count int
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Arr(func(d *jx.Decoder) error {
		count++
		return d.Skip()
	}))
	assert.Equal(t, 1, count)

	w = do(t, h, http.MethodDelete, "/api/deleteproduct/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodGet, "/api/product/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"message":"product not found"}`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/api/deleteproduct/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddProduct_Validation(t *testing.T) {
	_, h := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"offerPrice":"10"}`},
		{name: "bad price", body: `{"name":"x","offerPrice":"ten"}`},
		{name: "negative price", body: `{"name":"x","offerPrice":-1}`},
		{name: "not json", body: `name=x`},
		{name: "empty body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/addproduct", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "400", fields(t, w)["code"])
		})
	}
}

func TestProductList_StorageError(t *testing.T) {
	store, h := newTestServer(t)
	store.failList = errors.New("connection reset")

	w := do(t, h, http.MethodGet, "/api/productlist", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())
}

func TestCart_MergeOnAdd(t *testing.T) {
	store, h := newTestServer(t)
	store.products["p1"] = product.Product{ID: "p1", Name: "Phone", OfferPrice: decimal.NewFromInt(10)}

	addToCart(t, h, "u1", "p1", "10")
	w := do(t, h, http.MethodPost, "/api/cart/u1/add", `{"productId":"p1","name":"Renamed","offerPrice":99}`)
	require.Equal(t, http.StatusOK, w.Code)

	c := store.carts["u1"]
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "Item p1", c.Items[0].Name)
	assert.True(t, decimal.NewFromInt(10).Equal(c.Items[0].OfferPrice))

	w = do(t, h, http.MethodGet, "/api/cart/u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := fields(t, w)
	assert.Equal(t, "20", got["total"])
	assert.Contains(t, got["items"], `"product":{"id":"p1"`)
}

func TestCart_FetchMissing(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/cart/nobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := fields(t, w)
	assert.Equal(t, "[]", got["items"])
	assert.Equal(t, "0", got["total"])
}

func TestCart_UpdateQuantity(t *testing.T) {
	store, h := newTestServer(t)
	addToCart(t, h, "u1", "p1", "5")

	w := do(t, h, http.MethodPut, "/api/cart/u1/update", `{"productId":"p1","quantity":7}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 7, store.carts["u1"].Items[0].Quantity)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{name: "zero quantity", path: "/api/cart/u1/update", body: `{"productId":"p1","quantity":0}`, code: http.StatusBadRequest},
		{name: "missing quantity", path: "/api/cart/u1/update", body: `{"productId":"p1"}`, code: http.StatusBadRequest},
		{name: "string quantity", path: "/api/cart/u1/update", body: `{"productId":"p1","quantity":"2"}`, code: http.StatusBadRequest},
		{name: "unknown item", path: "/api/cart/u1/update", body: `{"productId":"zz","quantity":1}`, code: http.StatusNotFound},
		{name: "unknown cart", path: "/api/cart/u2/update", body: `{"productId":"p1","quantity":1}`, code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestCart_RemoveAndClear(t *testing.T) {
	store, h := newTestServer(t)
	addToCart(t, h, "u1", "p1", "5")
	addToCart(t, h, "u1", "p2", "3")

	w := do(t, h, http.MethodDelete, "/api/cart/u1/remove/p1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, store.carts["u1"].Items, 1)
	assert.Equal(t, "p2", store.carts["u1"].Items[0].ProductID)

	w = do(t, h, http.MethodDelete, "/api/cart/u1/remove/absent", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/cart/u9/remove/p1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/api/cart/u1/clear", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, store.carts, "u1")

	w = do(t, h, http.MethodDelete, "/api/cart/u1/clear", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPlaceOrder_FromCart(t *testing.T) {
	store, h := newTestServer(t)
	addToCart(t, h, "u1", "p1", "10")
	addToCart(t, h, "u1", "p1", "10")
	addToCart(t, h, "u1", "p2", "5")

	w := do(t, h, http.MethodPost, "/api/order/u1", `{
		"deliveryInfo": {"firstName":"Ada","lastName":"Lovelace","zipcode":600001,"city":"Chennai"}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got := fields(t, w)
	assert.Equal(t, "25", got["total"])
	assert.Equal(t, "Pending", got["status"])
	assert.Equal(t, "Cash on Delivery", got["paymentMethod"])
	assert.Equal(t, "cart", got["source"])
	assert.Contains(t, got["deliveryInfo"], `"zipcode":"600001"`)
	assert.NotContains(t, store.carts, "u1")

	w = do(t, h, http.MethodPost, "/api/order/u1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":400,"message":"cart is empty"}`, w.Body.String())
	assert.Len(t, store.orders, 1)
}

func TestPlaceOrder_ClientAsserted(t *testing.T) {
	store, h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/orders/u1", `{
		"items": [{"productId":"p1","name":"Phone","offerPrice":"10","quantity":2}],
		"total": 5,
		"paymentMethod": "UPI"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := fields(t, w)
	assert.Equal(t, "5", got["total"])
	assert.Equal(t, "client", got["source"])
	assert.Equal(t, "UPI", got["paymentMethod"])
	require.Len(t, store.orders, 1)

	w = do(t, h, http.MethodPost, "/api/orders/u1", `{"items":[],"total":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/orders/u1", `{"items":[{"productId":"p1","quantity":0}],"total":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceOrder_ClientAssertedTotalRequired(t *testing.T) {
	store, h := newTestServer(t)

	for _, body := range []string{
		`{"items":[{"productId":"p1","offerPrice":"10","quantity":2}]}`,
		`{"items":[{"productId":"p1","offerPrice":"10","quantity":2}],"total":null}`,
	} {
		w := do(t, h, http.MethodPost, "/api/orders/u1", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.JSONEq(t, `{"code":400,"message":"total required"}`, w.Body.String())
	}
	assert.Empty(t, store.orders)
}

func TestOrderHistory_NewestFirst(t *testing.T) {
	_, h := newTestServer(t)

	var ids []string
	for _, p := range []string{"p1", "p2"} {
		addToCart(t, h, "u1", p, "1")
		w := do(t, h, http.MethodPost, "/api/order/u1", "")
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, fields(t, w)["id"])
	}

	w := do(t, h, http.MethodGet, "/api/orders/u1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []string
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Arr(func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "id" {
				return d.Skip()
			}
			id, err := d.Str()
			got = append(got, id)
			return err
		})
	}))
	assert.Equal(t, []string{ids[1], ids[0]}, got)

	w = do(t, h, http.MethodGet, "/api/orders/nobody", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestUpdateOrderStatus(t *testing.T) {
	_, h := newTestServer(t)
	addToCart(t, h, "u1", "p1", "1")
	w := do(t, h, http.MethodPost, "/api/order/u1", "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := fields(t, w)["id"]

	w = do(t, h, http.MethodPut, "/api/order/"+id+"/status", `{"status":"Shipped"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Shipped", fields(t, w)["status"])

	w = do(t, h, http.MethodPut, "/api/order/"+id+"/status", `{"status":"Pending"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPut, "/api/order/"+id+"/status", `{"status":"Lost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPut, "/api/order/missing/status", `{"status":"Shipped"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.Wrap(cart.ErrItemNotFound, "update"), http.StatusNotFound},
		{order.ErrEmptyCart, http.StatusBadRequest},
		{&cart.InvalidQuantityError{ProductID: "p", Quantity: -1}, http.StatusBadRequest},
		{&order.InvalidTransitionError{From: order.StatusDelivered, To: order.StatusShipped}, http.StatusConflict},
		{errors.Wrap(errors.New("timeout"), "get cart"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
