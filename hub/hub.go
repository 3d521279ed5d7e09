// Package hub implements the client side of the real-time messaging hub
// protocol: a persistent websocket connection carrying JSON frames for
// remote method invocations and server-pushed events, with automatic
// reconnection after transport drops.
package hub

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConnected is returned by Invoke while the transport has no
	// live connection (before Connect, or between a drop and a successful
	// reconnect).
	ErrNotConnected = errors.New("hub not connected")
	// ErrClosed is returned once Stop has been called.
	ErrClosed = errors.New("hub closed")
	// ErrInvocation wraps a remote method rejection.
	ErrInvocation = errors.New("invocation rejected")
)

// EventHandler receives the payload of a server-pushed event.
type EventHandler func(payload json.RawMessage)

// Transport is the hub contract the chat session consumes. A Transport owns
// exactly one logical connection; transient network loss is absorbed by the
// built-in reconnect and surfaced only through the down/up callbacks.
type Transport interface {
	// Connect establishes the connection, obtaining a bearer token from
	// the configured provider.
	Connect(ctx context.Context) error
	// Invoke calls a remote method and waits for the hub's result frame.
	Invoke(ctx context.Context, method string, args ...any) error
	// On registers a handler for a server-pushed event. Handlers must be
	// registered before Connect to avoid missing pushes that follow a
	// join.
	On(event string, h EventHandler)
	// OnConnectionDown is called once per lost connection.
	OnConnectionDown(f func(err error))
	// OnConnectionUp is called once per restored connection. Server-side
	// room membership is not assumed to survive the drop.
	OnConnectionUp(f func())
	// Stop disables reconnection and closes the connection. Idempotent.
	Stop(ctx context.Context) error
}
