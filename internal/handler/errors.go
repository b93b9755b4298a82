package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	notFound = []error{
		product.ErrNotFound,
		cart.ErrCartNotFound,
		cart.ErrItemNotFound,
		order.ErrOrderNotFound,
	}
	invalid = []error{
		product.ErrNameRequired,
		product.ErrInvalidPrice,
		cart.ErrUserIDRequired,
		cart.ErrProductIDRequired,
		cart.ErrInvalidPrice,
		order.ErrEmptyCart,
		order.ErrEmptyItems,
		order.ErrUserIDRequired,
		order.ErrTotalRequired,
		order.ErrInvalidTotal,
	}
)

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range invalid {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}

	var (
		bre       *badRequestError
		cartQty   *cart.InvalidQuantityError
		orderQty  *order.InvalidQuantityError
		statusErr *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &bre), errors.As(err, &cartQty), errors.As(err, &orderQty):
		return http.StatusBadRequest
	case errors.As(err, &statusErr):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError writes {"code","message"}. Internal errors are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}

	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
