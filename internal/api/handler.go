// Package api exposes cart sessions and the catalog browser over HTTP/JSON.
package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
	"github.com/xenking/kart-session/internal/reconcile"
	"github.com/xenking/kart-session/internal/session"
)

// Sessions opens, looks up and closes cart-editing sessions.
type Sessions interface {
	Open(ctx context.Context, pageSize int) (uuid.UUID, *session.Session, error)
	Get(id uuid.UUID) (*session.Session, error)
	Close(ctx context.Context, id uuid.UUID) (reconcile.Difference, bool, error)
}

// Catalog is the catalog browser controller.
type Catalog interface {
	ListProducts(ctx context.Context, offset, limit int) ([]product.ShoppingProduct, error)
	ViewProduct(ctx context.Context, p product.Product) (*product.Product, error)
	RecentProducts(ctx context.Context, n int) ([]recent.RecentProduct, error)
	Increase(ctx context.Context, p product.Product) (product.ShoppingProduct, error)
	DecreaseOrRemove(ctx context.Context, p product.Product) (product.ShoppingProduct, error)
	CartAmount(ctx context.Context) (int, error)
}

// Board reports the catalog screen state built from session differences.
type Board interface {
	Snapshot() ([]product.ShoppingProduct, int)
}

// Config holds request limits.
type Config struct {
	// RecentLimit is the number of recently viewed products returned when
	// the client sends no limit.
	RecentLimit int
	// ListLimit caps the catalog page size.
	ListLimit int
}

// Handler serves the HTTP API.
type Handler struct {
	sessions Sessions
	catalog  Catalog
	board    Board
	cfg      Config
}

// NewHandler returns a Handler. board may be nil, in which case the board
// route is not registered.
func NewHandler(cfg Config, sessions Sessions, catalog Catalog, board Board) *Handler {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	return &Handler{sessions: sessions, catalog: catalog, board: board, cfg: cfg}
}

// Register adds the API routes to mux. Open is wrapped around the session
// open route, so callers can throttle it separately.
func (h *Handler) Register(mux *http.ServeMux, open func(http.Handler) http.Handler) {
	if open == nil {
		open = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("POST /api/cart/sessions", open(http.HandlerFunc(h.openSession)))
	mux.HandleFunc("GET /api/cart/sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /api/cart/sessions/{id}", h.closeSession)
	mux.HandleFunc("POST /api/cart/sessions/{id}/next", h.nextPage)
	mux.HandleFunc("POST /api/cart/sessions/{id}/previous", h.previousPage)
	mux.HandleFunc("POST /api/cart/sessions/{id}/items/{op}", h.itemOp)
	mux.HandleFunc("POST /api/cart/sessions/{id}/check-all", h.checkAll)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("POST /api/products/view", h.viewProduct)
	mux.HandleFunc("POST /api/products/increase", h.increaseProduct)
	mux.HandleFunc("POST /api/products/decrease", h.decreaseProduct)
	mux.HandleFunc("GET /api/recent", h.recentProducts)
	mux.HandleFunc("GET /api/cart/amount", h.cartAmount)
	if h.board != nil {
		mux.HandleFunc("GET /api/board", h.getBoard)
	}
}
