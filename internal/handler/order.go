package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) error {
	req := order.PlaceOrderRequest{UserID: r.PathValue("userId")}
	if r.ContentLength != 0 {
		err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "deliveryInfo":
				req.DeliveryInfo, err = decodeDeliveryInfo(d)
			case "paymentMethod":
				req.PaymentMethod, err = decodeText(d)
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) placeClientOrder(w http.ResponseWriter, r *http.Request) error {
	req := order.ClientOrderRequest{UserID: r.PathValue("userId")}
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, it)
				return nil
			})
		case "total":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var total decimal.Decimal
			total, err = decodeMoney(d, "total")
			req.Total = &total
		case "deliveryInfo":
			req.DeliveryInfo, err = decodeDeliveryInfo(d)
		case "paymentMethod":
			req.PaymentMethod, err = decodeText(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	o, err := h.orders.PlaceClientOrder(r.Context(), req)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}

func (h *Handler) orderHistory(w http.ResponseWriter, r *http.Request) error {
	orders, err := h.orders.History(r.Context(), r.PathValue("userId"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range orders {
				encodeOrder(e, &orders[i])
			}
		})
	})
	return nil
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) error {
	var status order.Status
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		s, err := d.Str()
		status = order.Status(s)
		return err
	})
	if err != nil {
		return err
	}
	if !status.Valid() {
		return badRequest("unknown status "+string(status), nil)
	}

	o, err := h.orders.AdvanceStatus(r.Context(), r.PathValue("orderId"), status)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
	return nil
}
