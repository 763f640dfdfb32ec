package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Encode writes p as {"pictureUrl","title","price"}.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("pictureUrl")
	e.Str(p.PictureURL)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("price")
	e.Int64(p.Price)
	e.ObjEnd()
}

// Decode reads p from a JSON object. Unknown fields are skipped; title and
// price are required.
func (p *Product) Decode(d *jx.Decoder) error {
	var seenTitle, seenPrice bool
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "pictureUrl":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "pictureUrl")
			}
			p.PictureURL = v
		case "title":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "title")
			}
			p.Title = v
			seenTitle = true
		case "price":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = v
			seenPrice = true
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "decode product")
	}
	if !seenTitle || !seenPrice {
		return errors.Wrap(ErrInvalidProduct, "missing title or price")
	}
	return nil
}

// Encode writes sp as {"product":{...},"amount":n}.
func (sp ShoppingProduct) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("product")
	sp.Product.Encode(e)
	e.FieldStart("amount")
	e.Int(sp.Amount)
	e.ObjEnd()
}

// Decode reads sp from a JSON object.
func (sp *ShoppingProduct) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product":
			return sp.Product.Decode(d)
		case "amount":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "amount")
			}
			sp.Amount = v
		default:
			return d.Skip()
		}
		return nil
	})
}
