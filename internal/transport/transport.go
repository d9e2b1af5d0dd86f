// Package transport owns the single persistent connection to the Quizerr
// server. It exposes raw event send/receive primitives: push subscriptions,
// and request emission with an at-most-once acknowledgment callback.
//
// All handler and acknowledgment callbacks are invoked from one dispatch
// goroutine, so no two callbacks ever run concurrently.
package transport

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNotConnected is returned when emitting on a connection that is not
	// currently established.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrAckTimeout is passed to an AckHandler when the server never
	// acknowledged the request within the configured window.
	ErrAckTimeout = errors.New("transport: acknowledgment timed out")

	// ErrConnectionLost is passed to an AckHandler when the connection
	// dropped while the request was in flight.
	ErrConnectionLost = errors.New("transport: connection lost before acknowledgment")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: connection closed")

	// ErrSendBufferFull is returned when the outbound queue is saturated.
	ErrSendBufferFull = errors.New("transport: send buffer full")
)

// Handler receives the raw payload of a push event.
type Handler func(data json.RawMessage)

// AckHandler receives the acknowledgment for a request. It is invoked at
// most once: with a payload on success, or with a non-nil error if the
// acknowledgment timed out or the connection dropped mid-flight.
type AckHandler func(data json.RawMessage, err error)

// Subscription identifies one registered handler so it can be removed.
type Subscription struct {
	Event string
	id    string
}

// NewSubscription builds a subscription token. It exists for alternative
// Bus implementations (fakes); Conn mints its own.
func NewSubscription(event, id string) Subscription {
	return Subscription{Event: event, id: id}
}

// SubID returns the registry key of this subscription.
func (s Subscription) SubID() string { return s.id }

// Bus is the send/receive surface sessions depend on. *Conn implements it;
// tests substitute a fake.
type Bus interface {
	// ID returns the server-assigned session id, or empty when
	// disconnected. The id is re-issued on reconnect and must not be
	// assumed stable across reconnects.
	ID() string

	// Connected reports whether the transport is currently established.
	Connected() bool

	// On registers a handler for a push event. Multiple handlers per event
	// are allowed. Lifecycle events (events.Connect, events.Disconnect,
	// events.ConnectError) are delivered through the same mechanism.
	On(event string, h Handler) Subscription

	// Off removes a previously registered handler.
	Off(sub Subscription)

	// Emit sends an unacknowledged event.
	Emit(event string, payload any) error

	// EmitWithAck sends a request and registers ack to receive the server's
	// response. The callback fires at most once, and not at all only if the
	// transport itself is torn down before any outcome is known.
	EmitWithAck(event string, payload any, ack AckHandler) error
}
