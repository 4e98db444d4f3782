// Package seed reads the product catalog and coupon catalog files shipped in
// the db package or supplied to the CLI tools.
package seed

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/product"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress returns r unchanged unless it starts with the gzip magic bytes,
// in which case it returns a parallel gzip reader. The caller closes the
// returned reader.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "peek header")
	}
	if !bytes.Equal(head, gzipMagic) {
		return io.NopCloser(br), nil
	}
	zr, err := pgzip.NewReader(br)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip")
	}
	return zr, nil
}

// ReadProducts decodes a JSON array of products.
func ReadProducts(r io.Reader) ([]product.Product, error) {
	var products []product.Product
	d := jx.Decode(r, 4096)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	p := product.Product{Available: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
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
				return err
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}
	if p.ID == "" {
		return product.Product{}, errors.New("product without id")
	}
	return p, nil
}

// ReadCoupons decodes one coupon per line, normalizes and validates it and
// calls fn. Blank lines are skipped. Errors carry the line number.
func ReadCoupons(r io.Reader, fn func(coupon.Coupon) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		c, err := DecodeCoupon(raw)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "scan coupons")
	}
	return nil
}

// DecodeCoupon decodes and validates a single coupon JSON object.
func DecodeCoupon(raw []byte) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "kind":
			var kind string
			kind, err = d.Str()
			c.Kind = coupon.Kind(kind)
		case "value":
			c.Value, err = decodeDecimal(d)
		case "minQuantity":
			c.MinQuantity, err = d.Int()
		case "minAmount":
			c.MinAmount, err = decodeNullDecimal(d)
		case "maxDiscount":
			c.MaxDiscount, err = decodeNullDecimal(d)
		case "description":
			c.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "decode coupon")
	}

	code, err := coupon.NormalizeCode(c.Code)
	if err != nil {
		return coupon.Coupon{}, errors.Wrapf(err, "code %q", c.Code)
	}
	c.Code = code
	if err := c.Validate(); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	// String numbers ("12.50") are accepted as well.
	return decimal.NewFromString(strings.Trim(string(n), `"`))
}

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(v), nil
}
