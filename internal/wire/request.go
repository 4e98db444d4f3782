package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-orders/internal/domain/cart"
	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/payment"
)

// PlaceOrder is the body of POST /api/orders.
type PlaceOrder struct {
	Lines      []order.LineRequest
	CouponCode string
	Address    string
	Phone      string
	Notes      string
	Card       payment.Card
}

// Request converts the body into a service request for customerID.
func (p PlaceOrder) Request(customerID string) order.PlaceOrderRequest {
	return order.PlaceOrderRequest{
		CustomerID:      customerID,
		Lines:           p.Lines,
		CouponCode:      p.CouponCode,
		DeliveryAddress: p.Address,
		Phone:           p.Phone,
		Notes:           p.Notes,
		Card:            p.Card,
	}
}

// Encode writes the request body.
func (p PlaceOrder) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) { encodeLines(e, p.Lines) })
		if p.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(p.CouponCode) })
		}
		e.Field("address", func(e *jx.Encoder) { e.Str(p.Address) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(p.Phone) })
		if p.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(p.Notes) })
		}
		e.Field("card", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("number", func(e *jx.Encoder) { e.Str(p.Card.Number) })
				e.Field("holder", func(e *jx.Encoder) { e.Str(p.Card.Holder) })
				e.Field("expiry", func(e *jx.Encoder) { e.Str(p.Card.Expiry) })
				e.Field("cvv", func(e *jx.Encoder) { e.Str(p.Card.CVV) })
			})
		})
	})
}

// DecodePlaceOrder reads a POST /api/orders body. "items" is accepted as an
// alias of "lines".
func DecodePlaceOrder(d *jx.Decoder) (PlaceOrder, error) {
	var p PlaceOrder
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "lines", "items":
			p.Lines, err = decodeLines(d)
		case "couponCode":
			p.CouponCode, err = decodeOptionalStr(d)
		case "address", "deliveryAddress":
			p.Address, err = d.Str()
		case "phone":
			p.Phone, err = d.Str()
		case "notes":
			p.Notes, err = decodeOptionalStr(d)
		case "card":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "number":
					p.Card.Number, err = d.Str()
				case "holder":
					p.Card.Holder, err = d.Str()
				case "expiry":
					p.Card.Expiry, err = d.Str()
				case "cvv":
					p.Card.CVV, err = d.Str()
				default:
					err = d.Skip()
				}
				return field(key, err)
			})
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	if err != nil {
		return PlaceOrder{}, errors.Wrap(err, "decode order request")
	}
	return p, nil
}

// EncodeQuoteRequest writes the body of POST /api/cart/quote.
func EncodeQuoteRequest(e *jx.Encoder, q order.QuoteRequest) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) { encodeLines(e, q.Lines) })
		if q.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(q.CouponCode) })
		}
	})
}

// DecodeQuoteRequest reads a POST /api/cart/quote body.
func DecodeQuoteRequest(d *jx.Decoder) (order.QuoteRequest, error) {
	var q order.QuoteRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "lines", "items":
			q.Lines, err = decodeLines(d)
		case "couponCode":
			q.CouponCode, err = decodeOptionalStr(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	if err != nil {
		return order.QuoteRequest{}, errors.Wrap(err, "decode quote request")
	}
	return q, nil
}

// EncodeQuote writes a priced cart.
func EncodeQuote(e *jx.Encoder, q *order.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range q.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
						e.Field("unitPrice", func(e *jx.Encoder) { encodeMoney(e, l.UnitPrice) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("amount", func(e *jx.Encoder) { encodeMoney(e, l.Amount()) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, q.Totals.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, q.Totals.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, q.Totals.Total) })
		e.Field("couponApplied", func(e *jx.Encoder) { e.Bool(q.Totals.CouponApplied) })
		if q.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(q.CouponCode) })
		}
	})
}

// DecodeQuote reads a priced cart.
func DecodeQuote(d *jx.Decoder) (*order.Quote, error) {
	q := &order.Quote{Lines: []cart.Line{}}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				var l cart.Line
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "productId":
						l.ProductID, err = d.Str()
					case "name":
						l.Name, err = d.Str()
					case "unitPrice":
						l.UnitPrice, err = decodeMoney(d)
					case "quantity":
						l.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return field(key, err)
				}); err != nil {
					return err
				}
				q.Lines = append(q.Lines, l)
				return nil
			})
		case "subtotal":
			q.Totals.Subtotal, err = decodeMoney(d)
		case "discount":
			q.Totals.Discount, err = decodeMoney(d)
		case "total":
			q.Totals.Total, err = decodeMoney(d)
		case "couponApplied":
			q.Totals.CouponApplied, err = d.Bool()
		case "couponCode":
			q.CouponCode, err = decodeOptionalStr(d)
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode quote")
	}
	return q, nil
}

// EncodeTransition writes the body of PATCH /api/orders/{id}/status.
func EncodeTransition(e *jx.Encoder, target order.Status) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("targetStatus", func(e *jx.Encoder) { e.Int(target.Code()) })
	})
}

// DecodeTransition reads the target status, given as code or name.
func DecodeTransition(d *jx.Decoder) (order.Status, error) {
	var (
		target order.Status
		seen   bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "targetStatus" {
			return d.Skip()
		}
		var err error
		target, err = decodeStatus(d)
		seen = true
		return field(key, err)
	})
	if err != nil {
		return 0, errors.Wrap(err, "decode transition")
	}
	if !seen {
		return 0, errors.New("decode transition: targetStatus is required")
	}
	return target, nil
}

func encodeLines(e *jx.Encoder, lines []order.LineRequest) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			})
		}
	})
}

func decodeLines(d *jx.Decoder) ([]order.LineRequest, error) {
	var lines []order.LineRequest
	err := d.Arr(func(d *jx.Decoder) error {
		var l order.LineRequest
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "productId":
				l.ProductID, err = d.Str()
			case "quantity":
				l.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return field(key, err)
		}); err != nil {
			return err
		}
		lines = append(lines, l)
		return nil
	})
	return lines, err
}

func decodeOptionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
