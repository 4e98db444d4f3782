package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-orders/internal/domain/product"
)

// EncodeProducts writes the catalog snapshot.
func EncodeProducts(e *jx.Encoder, products []product.Product) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
				e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
				e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
				e.Field("available", func(e *jx.Encoder) { e.Bool(p.Available) })
				e.Field("image", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						e.Field("thumbnail", func(e *jx.Encoder) { e.Str(p.Image.Thumbnail) })
						e.Field("mobile", func(e *jx.Encoder) { e.Str(p.Image.Mobile) })
						e.Field("tablet", func(e *jx.Encoder) { e.Str(p.Image.Tablet) })
						e.Field("desktop", func(e *jx.Encoder) { e.Str(p.Image.Desktop) })
					})
				})
			})
		}
	})
}

// DecodeProducts reads a catalog snapshot.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	out := []product.Product{}
	err := d.Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "price":
				p.Price, err = decodeMoney(d)
			case "category":
				p.Category, err = d.Str()
			case "available":
				p.Available, err = d.Bool()
			case "image":
				err = d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "thumbnail":
						p.Image.Thumbnail, err = d.Str()
					case "mobile":
						p.Image.Mobile, err = d.Str()
					case "tablet":
						p.Image.Tablet, err = d.Str()
					case "desktop":
						p.Image.Desktop, err = d.Str()
					default:
						err = d.Skip()
					}
					return field(key, err)
				})
			default:
				err = d.Skip()
			}
			return field(key, err)
		}); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}
