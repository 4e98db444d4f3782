package wire

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrorReason is one failing field of a payment decline.
type ErrorReason struct {
	Field   string
	Reason  string
	Message string
}

// Error is the error body returned by every endpoint.
type Error struct {
	// Code mirrors the HTTP status.
	Code    int
	Message string
	Field   string
	Reasons []ErrorReason
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error %d: %s", e.Code, e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	return b.String()
}

// Encode writes the error body.
func (e *Error) Encode(enc *jx.Encoder) {
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("code", func(enc *jx.Encoder) { enc.Int(e.Code) })
		enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.Message) })
		if e.Field != "" {
			enc.Field("field", func(enc *jx.Encoder) { enc.Str(e.Field) })
		}
		if len(e.Reasons) > 0 {
			enc.Field("reasons", func(enc *jx.Encoder) {
				enc.Arr(func(enc *jx.Encoder) {
					for _, r := range e.Reasons {
						enc.Obj(func(enc *jx.Encoder) {
							enc.Field("field", func(enc *jx.Encoder) { enc.Str(r.Field) })
							enc.Field("reason", func(enc *jx.Encoder) { enc.Str(r.Reason) })
							enc.Field("message", func(enc *jx.Encoder) { enc.Str(r.Message) })
						})
					}
				})
			})
		}
	})
}

// DecodeError reads an error body.
func DecodeError(d *jx.Decoder) (*Error, error) {
	var e Error
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			e.Code, err = d.Int()
		case "message":
			e.Message, err = d.Str()
		case "field":
			e.Field, err = d.Str()
		case "reasons":
			err = d.Arr(func(d *jx.Decoder) error {
				var r ErrorReason
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "field":
						r.Field, err = d.Str()
					case "reason":
						r.Reason, err = d.Str()
					case "message":
						r.Message, err = d.Str()
					default:
						err = d.Skip()
					}
					return field(key, err)
				}); err != nil {
					return err
				}
				e.Reasons = append(e.Reasons, r)
				return nil
			})
		default:
			err = d.Skip()
		}
		return field(key, err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode error body")
	}
	return &e, nil
}
