// Package handler implements the storefront REST API on net/http.
package handler

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// PathPrefix is the mount point of every API route.
const PathPrefix = "/api"

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler maps HTTP requests onto the catalog, cart and order services.
type Handler struct {
	products     *product.Service
	carts        *cart.Service
	orders       *order.Service
	imageBaseURL string
}

// New constructs a Handler with the required domain services.
func New(cfg Config, products *product.Service, carts *cart.Service, orders *order.Service) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		fn      handlerFunc
	}{
		{"GET /productlist", h.listProducts},
		{"GET /product/{id}", h.getProduct},
		{"POST /addproduct", h.addProduct},
		{"PUT /updateproduct/{id}", h.updateProduct},
		{"DELETE /deleteproduct/{id}", h.deleteProduct},

		{"GET /cart/{userId}", h.getCart},
		{"POST /cart/{userId}/add", h.addToCart},
		{"PUT /cart/{userId}/update", h.updateCartItem},
		{"DELETE /cart/{userId}/remove/{productId}", h.removeFromCart},
		{"DELETE /cart/{userId}/clear", h.clearCart},

		{"POST /order/{userId}", h.placeOrder},
		{"POST /orders/{userId}", h.placeClientOrder},
		{"GET /orders/{userId}", h.orderHistory},
		{"PUT /order/{orderId}/status", h.updateOrderStatus},
	}
	for _, rt := range routes {
		method, path, _ := strings.Cut(rt.pattern, " ")
		route := PathPrefix + path
		mux.Handle(method+" "+route, withRoute(method+" "+route, h.serve(rt.fn)))
	}
}

// Routes returns a mux serving only the API.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

// withRoute names the active span after the route pattern and tags both the
// span and the otelhttp request metrics with http.route.
func withRoute(pattern string, next http.Handler) http.Handler {
	_, route, _ := strings.Cut(pattern, " ")
	attr := attribute.String("http.route", route)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		span.SetName(pattern)
		span.SetAttributes(attr)
		if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
			labeler.Add(attr)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) serve(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	})
}

func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}
