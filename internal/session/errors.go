package session

import (
	"github.com/go-faster/errors"
)

var (
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionNotFound is returned by the registry for unknown IDs.
	ErrSessionNotFound = errors.New("session not found")
)
