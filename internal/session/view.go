package session

import (
	"github.com/xenking/kart-session/internal/domain/cart"
)

// Totals are the aggregates over checked lines.
type Totals struct {
	Price  int64
	Amount int
}

// PageView is the window of lines on the current page.
type PageView struct {
	Page       cart.Page
	Items      []cart.CartProduct
	AllChecked bool
}

// Navigation describes the paging controls.
type Navigation struct {
	Visible bool
	IsFirst bool
	IsLast  bool
	// Number is the 1-based page number.
	Number int
}

// State is a point-in-time snapshot of a session.
type State struct {
	Page       PageView
	Totals     Totals
	Navigation Navigation
	TotalCount int
}

// View receives state changes from a session as they happen. It is for
// callers embedding a Session directly; sessions opened through a Registry
// use NopView, and HTTP clients pull state with Session.Snapshot instead.
// Calls are made while the session lock is held, so implementations must
// not call back into the session.
type View interface {
	UpdateTotals(t Totals)
	UpdatePage(p PageView)
	UpdateItem(cp cart.CartProduct)
	UpdateNavigation(n Navigation)
}

// NopView ignores every update.
type NopView struct{}

func (NopView) UpdateTotals(Totals)         {}
func (NopView) UpdatePage(PageView)         {}
func (NopView) UpdateItem(cart.CartProduct) {}
func (NopView) UpdateNavigation(Navigation) {}
