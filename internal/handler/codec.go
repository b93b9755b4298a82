package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const maxBodySize = 1 << 20

// badRequestError reports a malformed request body or parameter.
type badRequestError struct {
	msg string
	err error
}

func (e *badRequestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &badRequestError{msg: msg, err: err}
}

// decodeBody reads the request body and calls fn for every top-level field.
// Unknown fields must be skipped by fn.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body", err)
	}
	if len(body) == 0 {
		return badRequest("request body required", nil)
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var bre *badRequestError
		if errors.As(err, &bre) {
			return bre
		}
		return badRequest("invalid JSON body", err)
	}
	return nil
}

// decodeText reads a string, number or null as text.
func decodeText(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

// decodeMoney accepts 12.5, "12.50" and "1,299.00".
func decodeMoney(d *jx.Decoder, field string) (decimal.Decimal, error) {
	s, err := decodeText(d)
	if err != nil {
		return decimal.Zero, badRequest(field, err)
	}
	v, err := product.ParsePrice(s)
	if err != nil {
		return decimal.Zero, badRequest(field, err)
	}
	return v, nil
}

func decodeInt(d *jx.Decoder, field string) (int, error) {
	if d.Next() == jx.String {
		return 0, badRequest(field+" must be a number", nil)
	}
	v, err := d.Int()
	if err != nil {
		return 0, badRequest(field, err)
	}
	return v, nil
}

func decodeBool(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.String:
		s, err := d.Str()
		return s == "true", err
	case jx.Null:
		return false, d.Null()
	default:
		return false, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = decodeText(d)
		case "name":
			it.Name, err = decodeText(d)
		case "offerPrice":
			it.OfferPrice, err = decodeMoney(d, "offerPrice")
		case "quantity":
			it.Quantity, err = decodeInt(d, "quantity")
		default:
			err = d.Skip()
		}
		return err
	})
	return it, err
}

func decodeDeliveryInfo(d *jx.Decoder) (order.DeliveryInfo, error) {
	var di order.DeliveryInfo
	fields := map[string]*string{
		"firstName": &di.FirstName,
		"lastName":  &di.LastName,
		"email":     &di.Email,
		"street":    &di.Street,
		"city":      &di.City,
		"state":     &di.State,
		"zipcode":   &di.Zipcode,
		"country":   &di.Country,
		"phone":     &di.Phone,
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		v, err := decodeText(d)
		*dst = v
		return err
	})
	return di, err
}

func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	if t.IsZero() {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}

func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("storage", func(e *jx.Encoder) { e.Str(p.Storage) })
		e.Field("originalPrice", func(e *jx.Encoder) { encodeMoney(e, p.OriginalPrice) })
		e.Field("offerPrice", func(e *jx.Encoder) { encodeMoney(e, p.OfferPrice) })
		e.Field("rating", func(e *jx.Encoder) { e.Str(p.Rating) })
		e.Field("ratingCount", func(e *jx.Encoder) { e.Str(p.RatingCount) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("bestseller", func(e *jx.Encoder) { e.Bool(p.Bestseller) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(h.imageURL(p.ImageURL)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

func encodeItemFields(e *jx.Encoder, it cart.Item) {
	e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
	e.Field("offerPrice", func(e *jx.Encoder) { encodeMoney(e, it.OfferPrice) })
	e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
}

func encodeItems(e *jx.Encoder, items []cart.Item) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) { encodeItemFields(e, it) })
		}
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("userId", func(e *jx.Encoder) { e.Str(c.UserID) })
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, c.Items) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, c.Total()) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, c.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, c.UpdatedAt) })
	})
}

func (h *Handler) encodeView(e *jx.Encoder, v *cart.View) {
	total := decimal.Zero
	for _, it := range v.Items {
		total = total.Add(it.OfferPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("userId", func(e *jx.Encoder) { e.Str(v.UserID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range v.Items {
					e.Obj(func(e *jx.Encoder) {
						encodeItemFields(e, it.Item)
						e.Field("product", func(e *jx.Encoder) {
							if it.Product == nil {
								e.Null()
								return
							}
							h.encodeProduct(e, it.Product)
						})
					})
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, total) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, v.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, v.UpdatedAt) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	di := o.DeliveryInfo
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("items", func(e *jx.Encoder) { encodeItems(e, o.Items) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("deliveryInfo", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("firstName", func(e *jx.Encoder) { e.Str(di.FirstName) })
				e.Field("lastName", func(e *jx.Encoder) { e.Str(di.LastName) })
				e.Field("email", func(e *jx.Encoder) { e.Str(di.Email) })
				e.Field("street", func(e *jx.Encoder) { e.Str(di.Street) })
				e.Field("city", func(e *jx.Encoder) { e.Str(di.City) })
				e.Field("state", func(e *jx.Encoder) { e.Str(di.State) })
				e.Field("zipcode", func(e *jx.Encoder) { e.Str(di.Zipcode) })
				e.Field("country", func(e *jx.Encoder) { e.Str(di.Country) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(di.Phone) })
			})
		})
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(o.Source)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
	})
}
