package hub

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/putto11262002/deliverchat/token"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Attempts to obtain a token from the provider before a connect is
	// considered failed.
	tokenAttempts = 3
)

// wire bundles the state of one physical connection. A new wire is created
// on every successful dial; the old one is discarded when the connection
// drops.
type wire struct {
	ws *websocket.Conn
	// out carries frames to the write loop of this connection.
	out chan *Frame
	// dead is closed when the read loop of this connection exits.
	dead chan struct{}
}

// Conn is a websocket Transport. After a successful Connect it keeps itself
// connected: an unexpected drop triggers dialing with capped exponential
// backoff until the connection is restored or Stop is called. Invocations
// issued while the connection is down fail fast with ErrNotConnected.
type Conn struct {
	url    string
	tokens token.Provider
	dialer *websocket.Dialer
	logger *slog.Logger

	reconnectWait    time.Duration
	maxReconnectWait time.Duration

	mu       sync.Mutex
	cur      *wire
	pending  map[string]chan *Frame
	handlers map[string][]EventHandler
	onDown   func(error)
	onUp     func()
	stopped  bool
	// stop interrupts reconnect backoff waits.
	stop chan struct{}

	wg sync.WaitGroup
}

type ConnOption func(*Conn)

func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *Conn) {
		c.logger = logger
	}
}

func WithDialer(d *websocket.Dialer) ConnOption {
	return func(c *Conn) {
		c.dialer = d
	}
}

// WithReconnectWait sets the initial and maximum backoff between reconnect
// attempts.
func WithReconnectWait(initial, max time.Duration) ConnOption {
	return func(c *Conn) {
		c.reconnectWait = initial
		c.maxReconnectWait = max
	}
}

func NewConn(hubURL string, tokens token.Provider, opts ...ConnOption) *Conn {
	c := &Conn{
		url:              hubURL,
		tokens:           tokens,
		dialer:           websocket.DefaultDialer,
		logger:           slog.Default(),
		reconnectWait:    500 * time.Millisecond,
		maxReconnectWait: 30 * time.Second,
		pending:          make(map[string]chan *Frame),
		handlers:         make(map[string][]EventHandler),
		stop:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Conn) On(event string, h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

func (c *Conn) OnConnectionDown(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDown = f
}

func (c *Conn) OnConnectionUp(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUp = f
}

func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cur != nil {
		c.mu.Unlock()
		return fmt.Errorf("hub: already connected")
	}
	c.mu.Unlock()

	ws, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		ws.Close()
		return ErrClosed
	}
	c.install(ws)
	c.mu.Unlock()
	return nil
}

// dial obtains a token and opens the websocket. The token is fetched anew
// on every attempt so reconnects after a long outage do not present a dead
// token.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	var tok string
	var err error
	for i := 0; i < tokenAttempts; i++ {
		tok, err = c.tokens.Token(ctx)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if tok != "" {
		q := u.Query()
		q.Set("access_token", tok)
		u.RawQuery = q.Encode()
	}

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// install wires up a freshly dialed websocket and starts its pumps.
// Caller must hold c.mu.
func (c *Conn) install(ws *websocket.Conn) {
	w := &wire{
		ws:   ws,
		out:  make(chan *Frame, 64),
		dead: make(chan struct{}),
	}
	c.cur = w

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop(w)
	}()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writeLoop(w)
	}()
}

func (c *Conn) readLoop(w *wire) {
	defer func() {
		close(w.dead)
		w.ws.Close()
		c.lost(w)
	}()

	w.ws.SetReadDeadline(time.Now().Add(pongWait))
	w.ws.SetPongHandler(func(string) error {
		w.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		mt, r, err := w.ws.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(fmt.Sprintf("expected close: %v", err))
				return
			}
			c.logger.Debug(fmt.Sprintf("NextReader: %v", err))
			return
		}

		if mt != websocket.TextMessage {
			c.logger.Error(fmt.Sprintf("unexpected message format: %v", mt))
			continue
		}

		var frame Frame
		if err := DecodeFrame(r, &frame); err != nil {
			c.logger.Error(err.Error())
			continue
		}
		c.dispatch(&frame)
	}
}

func (c *Conn) writeLoop(w *wire) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		w.ws.Close()
	}()

	for {
		select {
		case f := <-w.out:
			w.ws.SetWriteDeadline(time.Now().Add(writeWait))
			wr, err := w.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Error(fmt.Sprintf("NextWriter: %v", err))
				return
			}
			if err := EncodeFrame(wr, f); err != nil {
				c.logger.Error(err.Error())
			}
			wr.Close()
		case <-ticker.C:
			w.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug(fmt.Sprintf("writing ping: %v", err))
				return
			}
		case <-w.dead:
			return
		}
	}
}

func (c *Conn) dispatch(f *Frame) {
	switch f.Type {
	case FrameResult:
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		delete(c.pending, f.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug(fmt.Sprintf("result for unknown invocation %s", f.ID))
			return
		}
		ch <- f
	case FrameEvent:
		c.mu.Lock()
		handlers := make([]EventHandler, len(c.handlers[f.Event]))
		copy(handlers, c.handlers[f.Event])
		c.mu.Unlock()
		if len(handlers) == 0 {
			c.logger.Debug(fmt.Sprintf("no handler for event %s", f.Event))
		}
		for _, h := range handlers {
			h(f.Payload)
		}
	default:
		c.logger.Error(fmt.Sprintf("unexpected frame type %q", f.Type))
	}
}

// lost runs after a connection's read loop exits. It clears the current
// wire and, unless the drop was requested through Stop, notifies the owner
// and starts reconnecting.
func (c *Conn) lost(w *wire) {
	c.mu.Lock()
	if c.cur != w {
		c.mu.Unlock()
		return
	}
	c.cur = nil
	stopped := c.stopped
	onDown := c.onDown
	c.mu.Unlock()

	if stopped {
		return
	}

	c.logger.Info("hub connection lost")
	if onDown != nil {
		onDown(ErrNotConnected)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reconnectLoop()
	}()
}

func (c *Conn) reconnectLoop() {
	wait := c.reconnectWait
	for {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-c.stop:
			timer.Stop()
			return
		}

		ws, err := c.dial(context.Background())
		if err != nil {
			c.logger.Debug(fmt.Sprintf("reconnect dial: %v", err))
			wait *= 2
			if wait > c.maxReconnectWait {
				wait = c.maxReconnectWait
			}
			continue
		}

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			ws.Close()
			return
		}
		c.install(ws)
		onUp := c.onUp
		c.mu.Unlock()

		c.logger.Info("hub connection restored")
		if onUp != nil {
			onUp()
		}
		return
	}
}

// Invoke sends an invocation frame and waits for the matching result. It
// fails fast with ErrNotConnected while the connection is down, including
// when the connection drops mid-flight.
func (c *Conn) Invoke(ctx context.Context, method string, args ...any) error {
	f, err := NewInvocation(method, args...)
	if err != nil {
		return fmt.Errorf("NewInvocation: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrClosed
	}
	w := c.cur
	if w == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	res := make(chan *Frame, 1)
	c.pending[f.ID] = res
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	select {
	case w.out <- f:
	case <-w.dead:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case r := <-res:
		if r.Error != "" {
			return fmt.Errorf("%w: %s", ErrInvocation, r.Error)
		}
		return nil
	case <-w.dead:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop disables reconnection and closes the current connection with a
// normal-closure frame. It waits for the pumps to exit or the context to
// expire. Safe to call more than once.
func (c *Conn) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stop)
	w := c.cur
	c.mu.Unlock()

	if w != nil {
		w.ws.SetWriteDeadline(time.Now().Add(writeWait))
		w.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		w.ws.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
