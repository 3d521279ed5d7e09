package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/putto11262002/deliverchat/hub"
)

type invocation struct {
	Method string
	Args   []any
}

// mockTransport records invocations and lets tests drive pushes and
// connection drops by hand.
type mockTransport struct {
	mu sync.Mutex

	handlers map[string][]hub.EventHandler
	onDown   func(error)
	onUp     func()

	invocations []invocation
	connectErr  error
	// invokeErr maps a method name to the error its invocation returns.
	invokeErr map[string]error

	connectCalls int
	stopCalls    int
	// calls records the order of invoke/stop calls for teardown assertions.
	calls []string
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		handlers:  make(map[string][]hub.EventHandler),
		invokeErr: make(map[string]error),
	}
}

func (m *mockTransport) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	return m.connectErr
}

func (m *mockTransport) Invoke(_ context.Context, method string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invocations = append(m.invocations, invocation{Method: method, Args: args})
	m.calls = append(m.calls, method)
	return m.invokeErr[method]
}

func (m *mockTransport) On(event string, h hub.EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
}

func (m *mockTransport) OnConnectionDown(f func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDown = f
}

func (m *mockTransport) OnConnectionUp(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUp = f
}

func (m *mockTransport) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.calls = append(m.calls, "stop")
	return nil
}

// push delivers a server event to the registered handlers, as the hub
// transport would on its read loop.
func (m *mockTransport) push(t *testing.T, event string, payload any) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.Nil(t, err)
	m.mu.Lock()
	handlers := append([]hub.EventHandler(nil), m.handlers[event]...)
	m.mu.Unlock()
	require.NotEmpty(t, handlers, "no handler for %s", event)
	for _, h := range handlers {
		h(b)
	}
}

func (m *mockTransport) dropConnection() {
	m.mu.Lock()
	f := m.onDown
	m.mu.Unlock()
	if f == nil {
		return
	}
	f(hub.ErrNotConnected)
}

func (m *mockTransport) restoreConnection() {
	m.mu.Lock()
	f := m.onUp
	m.mu.Unlock()
	f()
}

func (m *mockTransport) methodCalls(method string) []invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []invocation
	for _, inv := range m.invocations {
		if inv.Method == method {
			out = append(out, inv)
		}
	}
	return out
}

func (m *mockTransport) callOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
