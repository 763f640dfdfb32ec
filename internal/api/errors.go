package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/domain/product"
	"github.com/xenking/kart-session/internal/domain/recent"
	"github.com/xenking/kart-session/internal/session"
	"github.com/xenking/kart-session/pkg/httpmiddleware"
)

// requestError is a malformed path, query or body.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr *requestError
		nf     *cart.NotFoundError
	)
	switch {
	case errors.As(err, &reqErr), errors.Is(err, product.ErrInvalidProduct):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionClosed),
		errors.As(err, &nf),
		errors.Is(err, recent.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrDuplicateProduct), errors.Is(err, recent.ErrDuplicateProduct):
		return http.StatusConflict
	case errors.Is(err, cart.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Unexpected errors are logged and
// their details hidden from the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case code == http.StatusInternalServerError:
		zctx.From(r.Context()).Error("Request error", zap.Error(err))
		msg = "internal error"
	case code == http.StatusServiceUnavailable:
		zctx.From(r.Context()).Warn("Store unavailable", zap.Error(err))
	}
	httpmiddleware.WriteError(w, code, msg)
}
