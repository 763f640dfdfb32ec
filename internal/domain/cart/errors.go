package cart

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-session/internal/domain/product"
)

var (
	// ErrDuplicateProduct is returned when an operation would put a second
	// line for the same product into a cart.
	ErrDuplicateProduct = errors.New("product already in cart")
	// ErrStoreUnavailable marks transient backing-store failures (I/O errors,
	// timeouts). Operations failing with it can be retried.
	ErrStoreUnavailable = errors.New("cart store unavailable")
)

// NotFoundError indicates that a product expected to be in the cart is not.
type NotFoundError struct {
	Product product.Product
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cart product %s not found", e.Product)
}

// StoreError wraps a backing-store failure. It matches ErrStoreUnavailable
// via errors.Is and unwraps to the underlying cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStoreUnavailable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// WrapStoreError annotates err with op. Domain errors keep their identity;
// anything else, including context deadlines, becomes a *StoreError.
func WrapStoreError(op string, err error) error {
	var nf *NotFoundError
	if errors.As(err, &nf) ||
		errors.Is(err, ErrDuplicateProduct) ||
		errors.Is(err, ErrStoreUnavailable) {
		return errors.Wrap(err, op)
	}
	return &StoreError{Op: op, Err: err}
}
