package api

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-session/internal/domain/product"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", h.cfg.ListLimit)
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := h.catalog.ListProducts(r.Context(), offset, min(limit, h.cfg.ListLimit))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeShoppingProducts(e, items) })
}

func (h *Handler) viewProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	prev, err := h.catalog.ViewProduct(r.Context(), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("previous")
		if prev == nil {
			e.Null()
		} else {
			prev.Encode(e)
		}
		e.ObjEnd()
	})
}

func (h *Handler) increaseProduct(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.catalog.Increase)
}

func (h *Handler) decreaseProduct(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.catalog.DecreaseOrRemove)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, p product.Product) (product.ShoppingProduct, error)) {
	p, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	sp, err := fn(r.Context(), p)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp.Encode)
}

func (h *Handler) recentProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", h.cfg.RecentLimit)
	if err != nil {
		fail(w, r, err)
		return
	}
	items, err := h.catalog.RecentProducts(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRecent(e, items) })
}

func (h *Handler) cartAmount(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.CartAmount(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("amount")
		e.Int(n)
		e.ObjEnd()
	})
}

func (h *Handler) getBoard(w http.ResponseWriter, _ *http.Request) {
	amounts, counter := h.board.Snapshot()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("counter")
		e.Int(counter)
		e.FieldStart("amounts")
		encodeShoppingProducts(e, amounts)
		e.ObjEnd()
	})
}
