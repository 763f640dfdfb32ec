// Package reconcile computes the net change a cart-editing session made and
// delivers it to the catalog screen, which applies each payload at most once.
package reconcile

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
)

// Difference is the payload handed back when a session closes. Amount 0 in
// Changed means the product left the cart.
type Difference struct {
	ID             uuid.UUID
	Changed        []product.ShoppingProduct
	NetAmountDelta int
}

// Compute returns the lines that differ between baseline and working plus
// the removed products. Each product appears at most once: a product that
// was removed and is present in working again is reported by its working
// entry only. The bool is false when nothing changed.
func Compute(baseline, working cart.Cart, removals []product.ShoppingProduct) (Difference, bool) {
	before := make(map[product.ShoppingProduct]struct{}, baseline.Len())
	for _, sp := range baseline.ShoppingProducts() {
		before[sp] = struct{}{}
	}

	current := working.ShoppingProducts()
	present := make(map[product.Product]struct{}, len(current))

	var changed []product.ShoppingProduct
	for _, sp := range current {
		present[sp.Product] = struct{}{}
		if _, ok := before[sp]; !ok {
			changed = append(changed, sp)
		}
	}

	reported := make(map[product.Product]struct{}, len(removals))
	for _, sp := range removals {
		if _, ok := present[sp.Product]; ok {
			continue
		}
		if _, ok := reported[sp.Product]; ok {
			continue
		}
		reported[sp.Product] = struct{}{}
		changed = append(changed, product.ShoppingProduct{Product: sp.Product})
	}

	d := Difference{
		ID:             uuid.New(),
		Changed:        changed,
		NetAmountDelta: working.TotalAmount() - baseline.TotalAmount(),
	}
	return d, len(changed) > 0
}

// Encode writes d as {"id","changed":[...],"netAmountDelta"}.
func (d Difference) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(d.ID.String())
	e.FieldStart("changed")
	e.ArrStart()
	for _, sp := range d.Changed {
		sp.Encode(e)
	}
	e.ArrEnd()
	e.FieldStart("netAmountDelta")
	e.Int(d.NetAmountDelta)
	e.ObjEnd()
}

// Decode reads d from a JSON object.
func (d *Difference) Decode(dec *jx.Decoder) error {
	return dec.Obj(func(dec *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := dec.Str()
			if err != nil {
				return errors.Wrap(err, "id")
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return errors.Wrap(err, "parse id")
			}
			d.ID = id
		case "changed":
			d.Changed = d.Changed[:0]
			return dec.Arr(func(dec *jx.Decoder) error {
				var sp product.ShoppingProduct
				if err := sp.Decode(dec); err != nil {
					return errors.Wrap(err, "changed")
				}
				d.Changed = append(d.Changed, sp)
				return nil
			})
		case "netAmountDelta":
			v, err := dec.Int()
			if err != nil {
				return errors.Wrap(err, "netAmountDelta")
			}
			d.NetAmountDelta = v
		default:
			return dec.Skip()
		}
		return nil
	})
}
