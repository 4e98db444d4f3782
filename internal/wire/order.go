package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
)

// EncodeOrder writes an order object.
func EncodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		e.Field("status", func(e *jx.Encoder) { e.Int(o.Status.Code()) })
		e.Field("statusName", func(e *jx.Encoder) { e.Str(o.Status.String()) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, it.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("deliveryAddress", func(e *jx.Encoder) { e.Str(o.DeliveryAddress) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(o.Phone) })
		if o.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(o.Notes) })
		}
		if r := o.Receipt; r != nil {
			e.Field("payment", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("transactionId", func(e *jx.Encoder) { e.Str(r.TransactionID) })
					e.Field("authorizationCode", func(e *jx.Encoder) { e.Str(r.AuthorizationCode) })
					e.Field("issuer", func(e *jx.Encoder) { e.Str(r.IssuerName) })
					e.Field("amount", func(e *jx.Encoder) { encodeMoney(e, r.Amount) })
					e.Field("method", func(e *jx.Encoder) { e.Str(r.Method) })
				})
			})
		}
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

// EncodeOrders writes an array of orders.
func EncodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			EncodeOrder(e, &orders[i])
		}
	})
}

// EncodeHistory writes an array of status changes.
func EncodeHistory(e *jx.Encoder, changes []order.StatusChange) {
	e.Arr(func(e *jx.Encoder) {
		for _, c := range changes {
			e.Obj(func(e *jx.Encoder) {
				e.Field("from", func(e *jx.Encoder) { e.Int(c.From.Code()) })
				e.Field("to", func(e *jx.Encoder) { e.Int(c.To.Code()) })
				e.Field("actorRole", func(e *jx.Encoder) { e.Str(string(c.ActorRole)) })
				e.Field("actorId", func(e *jx.Encoder) { e.Str(c.ActorID) })
				e.Field("changedAt", func(e *jx.Encoder) { encodeTime(e, c.ChangedAt) })
			})
		}
	})
}

// DecodeOrder reads an order object.
func DecodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "customerId":
			o.CustomerID, err = d.Str()
		case "status":
			o.Status, err = decodeStatus(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "subtotal":
			o.Subtotal, err = decodeMoney(d)
		case "discount":
			o.Discount, err = decodeMoney(d)
		case "total":
			o.Total, err = decodeMoney(d)
		case "couponCode":
			o.CouponCode, err = d.Str()
		case "deliveryAddress":
			o.DeliveryAddress, err = d.Str()
		case "phone":
			o.Phone, err = d.Str()
		case "notes":
			o.Notes, err = d.Str()
		case "payment":
			o.Receipt, err = decodeReceipt(d)
		case "createdAt":
			o.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			o.UpdatedAt, err = decodeTime(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	if err != nil {
		return order.Order{}, errors.Wrap(err, "decode order")
	}
	return o, nil
}

// DecodeOrders reads an array of orders.
func DecodeOrders(d *jx.Decoder) ([]order.Order, error) {
	orders := []order.Order{}
	err := d.Arr(func(d *jx.Decoder) error {
		o, err := DecodeOrder(d)
		if err != nil {
			return err
		}
		orders = append(orders, o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// DecodeHistory reads an array of status changes.
func DecodeHistory(d *jx.Decoder) ([]order.StatusChange, error) {
	changes := []order.StatusChange{}
	err := d.Arr(func(d *jx.Decoder) error {
		var c order.StatusChange
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "from":
				c.From, err = decodeStatus(d)
			case "to":
				c.To, err = decodeStatus(d)
			case "actorRole":
				var role string
				role, err = d.Str()
				c.ActorRole = auth.Role(role)
			case "actorId":
				c.ActorID, err = d.Str()
			case "changedAt":
				c.ChangedAt, err = decodeTime(d)
			default:
				err = d.Skip()
			}
			return field(key, err)
		}); err != nil {
			return err
		}
		changes = append(changes, c)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode history")
	}
	return changes, nil
}

func decodeItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "name":
			it.Name, err = d.Str()
		case "unitPrice":
			it.UnitPrice, err = decodeMoney(d)
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	return it, err
}

func decodeReceipt(d *jx.Decoder) (*payment.Receipt, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var r payment.Receipt
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "transactionId":
			r.TransactionID, err = d.Str()
		case "authorizationCode":
			r.AuthorizationCode, err = d.Str()
		case "issuer":
			r.IssuerName, err = d.Str()
		case "amount":
			r.Amount, err = decodeMoney(d)
		case "method":
			r.Method, err = d.Str()
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// decodeStatus accepts either the integer code or the status name.
func decodeStatus(d *jx.Decoder) (order.Status, error) {
	switch d.Next() {
	case jx.String:
		name, err := d.Str()
		if err != nil {
			return 0, err
		}
		return order.ParseStatus(name)
	default:
		code, err := d.Int()
		if err != nil {
			return 0, err
		}
		return order.StatusFromCode(code)
	}
}
