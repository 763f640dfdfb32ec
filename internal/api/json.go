package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
	"github.com/xenking/kart-session/internal/session"
)

const maxBodySize = 64 << 10

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, badRequest("read body", err)
	}
	return data, nil
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (product.Product, error) {
	data, err := readBody(w, r)
	if err != nil {
		return product.Product{}, err
	}
	var p product.Product
	if err := p.Decode(jx.DecodeBytes(data)); err != nil {
		if errors.Is(err, product.ErrInvalidProduct) {
			return product.Product{}, err
		}
		return product.Product{}, badRequest("invalid product", err)
	}
	if err := p.Validate(); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func decodeChecked(w http.ResponseWriter, r *http.Request) (bool, error) {
	data, err := readBody(w, r)
	if err != nil {
		return false, err
	}
	var (
		checked bool
		seen    bool
	)
	if err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "checked" {
			return d.Skip()
		}
		v, err := d.Bool()
		if err != nil {
			return errors.Wrap(err, "checked")
		}
		checked, seen = v, true
		return nil
	}); err != nil {
		return false, badRequest("invalid body", err)
	}
	if !seen {
		return false, badRequest("missing checked", nil)
	}
	return checked, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid session id", err)
	}
	return id, nil
}

// queryInt parses a non-negative query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, badRequest("invalid "+name, err)
	}
	return v, nil
}

func encodeCartProduct(e *jx.Encoder, cp cart.CartProduct) {
	e.ObjStart()
	e.FieldStart("product")
	cp.Product.Encode(e)
	e.FieldStart("amount")
	e.Int(cp.Amount)
	e.FieldStart("checked")
	e.Bool(cp.Checked)
	e.FieldStart("addedAt")
	e.Str(cp.AddedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

func encodeState(e *jx.Encoder, id uuid.UUID, st session.State) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(id.String())

	e.FieldStart("page")
	e.ObjStart()
	e.FieldStart("number")
	e.Int(st.Page.Page.Number())
	e.FieldStart("allChecked")
	e.Bool(st.Page.AllChecked)
	e.FieldStart("items")
	e.ArrStart()
	for _, cp := range st.Page.Items {
		encodeCartProduct(e, cp)
	}
	e.ArrEnd()
	e.ObjEnd()

	e.FieldStart("totals")
	e.ObjStart()
	e.FieldStart("price")
	e.Int64(st.Totals.Price)
	e.FieldStart("amount")
	e.Int(st.Totals.Amount)
	e.ObjEnd()

	e.FieldStart("navigation")
	e.ObjStart()
	e.FieldStart("visible")
	e.Bool(st.Navigation.Visible)
	e.FieldStart("isFirst")
	e.Bool(st.Navigation.IsFirst)
	e.FieldStart("isLast")
	e.Bool(st.Navigation.IsLast)
	e.FieldStart("number")
	e.Int(st.Navigation.Number)
	e.ObjEnd()

	e.FieldStart("totalCount")
	e.Int(st.TotalCount)
	e.ObjEnd()
}

func encodeShoppingProducts(e *jx.Encoder, items []product.ShoppingProduct) {
	e.ArrStart()
	for _, sp := range items {
		sp.Encode(e)
	}
	e.ArrEnd()
}

func encodeRecent(e *jx.Encoder, items []recent.RecentProduct) {
	e.ArrStart()
	for _, rp := range items {
		e.ObjStart()
		e.FieldStart("viewedAt")
		e.Str(rp.ViewedAt.UTC().Format(time.RFC3339Nano))
		e.FieldStart("product")
		rp.Product.Encode(e)
		e.ObjEnd()
	}
	e.ArrEnd()
}
