package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/cart"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) error {
	v, err := h.carts.Fetch(r.Context(), r.PathValue("userId"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeView(e, v) })
	return nil
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) error {
	req := cart.AddItemRequest{UserID: r.PathValue("userId")}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = decodeText(d)
		case "name":
			req.Name, err = decodeText(d)
		case "offerPrice":
			req.OfferPrice, err = decodeMoney(d, "offerPrice")
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	c, err := h.carts.AddItem(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
	return nil
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) error {
	req := cart.UpdateQuantityRequest{UserID: r.PathValue("userId")}
	var hasQuantity bool
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = decodeText(d)
		case "quantity":
			req.Quantity, err = decodeInt(d, "quantity")
			hasQuantity = true
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if !hasQuantity {
		return badRequest("quantity required", nil)
	}

	c, err := h.carts.UpdateQuantity(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
	return nil
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) error {
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("userId"), r.PathValue("productId"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
	return nil
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) error {
	if err := h.carts.Clear(r.Context(), r.PathValue("userId")); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "Cart cleared")
	return nil
}
