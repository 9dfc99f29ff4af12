package protocol

import "errors"

var (
	// ErrUnsupportedDialect is returned when no handler is registered for a
	// dialect or for the branch a message resolves to.
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	// ErrNotConnected is returned by session operations issued before connect.
	ErrNotConnected = errors.New("not connected")
	// ErrDecode marks a malformed wire payload.
	ErrDecode = errors.New("decode error")
	// ErrNotImplemented marks a recognized branch that has no handler yet.
	ErrNotImplemented = errors.New("not implemented")
	// ErrTransport wraps failures reported by the transport.
	ErrTransport = errors.New("transport error")
	// ErrInvalidCommand is returned when a control command misses required fields.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrMissingSessionID is returned when a multiplexed message has no session id.
	ErrMissingSessionID = errors.New("missing session id")
	// ErrInvalidMessage is returned when a message lacks a field its branch requires.
	ErrInvalidMessage = errors.New("invalid message")
)
