package api

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/session"
)

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	id, s, err := h.sessions.Open(r.Context(), pageSize)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeState(w, r, http.StatusCreated, id, s)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, nil)
}

func (h *Handler) nextPage(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *session.Session) error {
		return s.NextPage(ctx)
	})
}

func (h *Handler) previousPage(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(ctx context.Context, s *session.Session) error {
		return s.PreviousPage(ctx)
	})
}

type itemFunc func(s *session.Session, ctx context.Context, p product.Product) error

var itemOps = map[string]itemFunc{
	"increase":           (*session.Session).Increase,
	"decrease":           (*session.Session).DecreaseWithFloor,
	"decrease-or-remove": (*session.Session).DecreaseOrRemove,
	"toggle":             (*session.Session).ToggleChecked,
	"remove":             (*session.Session).Remove,
}

func (h *Handler) itemOp(w http.ResponseWriter, r *http.Request) {
	op, ok := itemOps[r.PathValue("op")]
	if !ok {
		fail(w, r, badRequest("unknown item operation "+r.PathValue("op"), nil))
		return
	}
	p, err := decodeProduct(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *session.Session) error {
		return op(s, ctx, p)
	})
}

func (h *Handler) checkAll(w http.ResponseWriter, r *http.Request) {
	checked, err := decodeChecked(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.withSession(w, r, func(ctx context.Context, s *session.Session) error {
		return s.SetAllCheckedInPage(ctx, checked)
	})
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	d, changed, err := h.sessions.Close(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if !changed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d.Encode)
}

// withSession resolves the session from the path, applies fn when it is
// not nil and responds with the resulting state.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) error) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if fn != nil {
		if err := fn(r.Context(), s); err != nil {
			fail(w, r, err)
			return
		}
	}
	h.writeState(w, r, http.StatusOK, id, s)
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, code int, id uuid.UUID, s *session.Session) {
	st, err := s.Snapshot()
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, code, func(e *jx.Encoder) { encodeState(e, id, st) })
}
