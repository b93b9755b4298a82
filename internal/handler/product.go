package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) error {
	products, err := h.products.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range products {
				h.encodeProduct(e, &products[i])
			}
		})
	})
	return nil
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) error {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
	return nil
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) error {
	patch, err := decodeProductPatch(w, r)
	if err != nil {
		return err
	}
	p, err := h.products.Create(r.Context(), patch.Input())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { h.encodeProduct(e, p) })
	return nil
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) error {
	patch, err := decodeProductPatch(w, r)
	if err != nil {
		return err
	}
	p, err := h.products.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, p) })
	return nil
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) error {
	if err := h.products.Delete(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, "Product deleted")
	return nil
}

// decodeProductPatch records only the fields present in the body.
func decodeProductPatch(w http.ResponseWriter, r *http.Request) (product.Patch, error) {
	var patch product.Patch
	text := map[string]**string{
		"category":      &patch.Category,
		"name":          &patch.Name,
		"storage":       &patch.Storage,
		"originalPrice": &patch.OriginalPrice,
		"offerPrice":    &patch.OfferPrice,
		"rating":        &patch.Rating,
		"ratingCount":   &patch.RatingCount,
		"description":   &patch.Description,
		"imageUrl":      &patch.ImageURL,
	}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if dst, ok := text[key]; ok {
			v, err := decodeText(d)
			if err != nil {
				return badRequest(key, err)
			}
			*dst = &v
			return nil
		}
		if key == "bestseller" {
			v, err := decodeBool(d)
			if err != nil {
				return badRequest(key, err)
			}
			patch.Bestseller = &v
			return nil
		}
		return d.Skip()
	})
	if err != nil {
		return product.Patch{}, errors.Wrap(err, "decode product")
	}
	return patch, nil
}
