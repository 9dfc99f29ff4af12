package session

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Bus event names emitted by the session itself. Decoded gateway messages
// are emitted under their response type ("tts", "stt", "sensor", ...).
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventAudio        = "audio"
)

// ErrClosed is the EventDisconnected payload when Disconnect closed the
// session. A connection lost on the transport side carries the transport
// error instead, or nil for a clean close by the gateway.
var ErrClosed = errors.New("session: closed by client")

// BusEvent is delivered to handlers registered with On.
type BusEvent struct {
	Name    string
	Payload any
}

// Handler receives bus events.
type Handler func(BusEvent)

// ErrorHandler receives errors observed outside of a caller's request.
type ErrorHandler func(error)

// On registers handler for events named name.
func (c *Client) On(name string, handler Handler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.handlers[name] = append(c.handlers[name], handler)
	c.mu.Unlock()
}

// OnError registers an error handler.
func (c *Client) OnError(handler ErrorHandler) {
	if handler == nil {
		return
	}
	c.mu.Lock()
	c.errorHandlers = append(c.errorHandlers, handler)
	c.mu.Unlock()
}

// Emit delivers event synchronously to every handler registered for its
// name, in registration order. A panicking handler is reported on the error
// bus and does not stop delivery to the rest.
func (c *Client) Emit(event BusEvent) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[event.Name]...)
	c.mu.Unlock()
	for _, handler := range handlers {
		if err := invokeHandler(handler, event); err != nil {
			c.reportError(err)
		}
	}
}

func invokeHandler(handler Handler, event BusEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session: %s handler panicked: %v", event.Name, r)
		}
	}()
	handler(event)
	return nil
}

func (c *Client) reportError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	handlers := append([]ErrorHandler(nil), c.errorHandlers...)
	c.mu.Unlock()
	c.logger.Warn("session error", zap.String("session_id", c.SessionID()), zap.Error(err))
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("error handler panicked", zap.Any("panic", r))
				}
			}()
			handler(err)
		}()
	}
}
