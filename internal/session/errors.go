package session

import "errors"

var (
	// ErrShellNotFound is returned when no usable shell binary exists.
	ErrShellNotFound = errors.New("no usable shell found")

	// ErrSessionClosed is returned when Run is called on a session that has
	// already run.
	ErrSessionClosed = errors.New("session already closed")

	// ErrNoOutput is returned by New without an output chain.
	ErrNoOutput = errors.New("session needs an output middleware")
)
