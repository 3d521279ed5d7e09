// Package devhub is a development implementation of the messaging hub the
// deliverchat client connects to: websocket transport, offer/order room
// membership, sqlite-backed history pushes, and live message broadcast.
// It exists to exercise the client end to end; it is not a production
// server.
package devhub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/putto11262002/deliverchat/chat"
	"github.com/putto11262002/deliverchat/hub"
)

// roomMethod resolves an invocation method name to the room kind it
// addresses and the operation it performs.
type roomMethod struct {
	kind chat.RoomKind
	op   string
}

const (
	opJoin  = "join"
	opLeave = "leave"
	opSend  = "send"
)

var methodTable = map[string]roomMethod{}

func init() {
	for _, kind := range []chat.RoomKind{chat.OfferRoom, chat.OrderRoom} {
		m := chat.RoomIdentity{Kind: kind, ID: "-"}.Methods()
		methodTable[m.Join] = roomMethod{kind: kind, op: opJoin}
		methodTable[m.Leave] = roomMethod{kind: kind, op: opLeave}
		methodTable[m.Send] = roomMethod{kind: kind, op: opSend}
	}
}

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub accepts authenticated websocket connections and routes room
// invocations: join pushes the room history back to the joiner, send
// persists the message and broadcasts it to every member including the
// sender.
type Hub struct {
	store        MessageStore
	auth         *Auth
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	historyLimit int

	mu    sync.RWMutex
	rooms map[string]map[*conn]struct{}
	conns map[*conn]struct{}

	wg sync.WaitGroup
}

type HubOption func(*Hub)

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithHistoryLimit(n int) HubOption {
	return func(h *Hub) {
		h.historyLimit = n
	}
}

func NewHub(store MessageStore, auth *Auth, opts ...HubOption) *Hub {
	h := &Hub{
		store:        store,
		auth:         auth,
		logger:       slog.Default(),
		upgrader:     defaultUpgrader,
		historyLimit: defaultHistoryLimit,
		rooms:        make(map[string]map[*conn]struct{}),
		conns:        make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP authenticates the access_token query parameter and upgrades
// the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Verify(r.URL.Query().Get("access_token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &conn{
		ws:     ws,
		userID: claims.UserID,
		out:    make(chan *hub.Frame, 64),
		done:   make(chan struct{}),
		hub:    h,
		logger: h.logger,
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("new connection", slog.String("user", c.userID))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.readLoop()
	}()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.writeLoop()
	}()
}

// Close disconnects all clients and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.disconnect(c)
	}
	h.wg.Wait()
}

func (h *Hub) handleFrame(c *conn, f *hub.Frame) {
	if f.Type != hub.FrameInvocation {
		c.logger.Error(fmt.Sprintf("unexpected frame type %q", f.Type))
		return
	}

	if err := h.handleInvocation(c, f); err != nil {
		h.send(c, hub.NewErrorResult(f.ID, err.Error()))
		return
	}
	h.send(c, hub.NewResult(f.ID))
}

func (h *Hub) handleInvocation(c *conn, f *hub.Frame) error {
	m, ok := methodTable[f.Method]
	if !ok {
		return fmt.Errorf("unknown method %q", f.Method)
	}

	switch m.op {
	case opJoin, opLeave:
		if len(f.Args) != 1 {
			return fmt.Errorf("%s: want 1 arg, got %d", f.Method, len(f.Args))
		}
		var id string
		if err := json.Unmarshal(f.Args[0], &id); err != nil {
			return fmt.Errorf("%s: %w", f.Method, err)
		}
		room := chat.RoomIdentity{Kind: m.kind, ID: id}
		if err := room.Validate(); err != nil {
			return err
		}
		if m.op == opJoin {
			return h.join(c, room)
		}
		h.leave(c, room)
		return nil
	case opSend:
		if len(f.Args) != 1 {
			return fmt.Errorf("%s: want 1 arg, got %d", f.Method, len(f.Args))
		}
		var draft chat.Draft
		if err := json.Unmarshal(f.Args[0], &draft); err != nil {
			return fmt.Errorf("%s: %w", f.Method, err)
		}
		if draft.Room.Kind != m.kind {
			return fmt.Errorf("%s: room kind %q does not match method", f.Method, draft.Room.Kind)
		}
		// the hub, not the client, decides who sent the message
		draft.SenderID = c.userID
		return h.sendMessage(c, draft)
	default:
		return fmt.Errorf("unknown operation %q", m.op)
	}
}

// join adds the connection to the room and pushes the room history back to
// the joiner. The history push is per-join, so a client rejoining after a
// reconnect receives the authoritative batch again.
func (h *Hub) join(c *conn, room chat.RoomIdentity) error {
	history, err := h.store.RoomMessages(context.Background(), room, h.historyLimit)
	if err != nil {
		return fmt.Errorf("RoomMessages: %w", err)
	}
	if history == nil {
		history = []chat.Message{}
	}

	h.mu.Lock()
	members, ok := h.rooms[room.String()]
	if !ok {
		members = make(map[*conn]struct{})
		h.rooms[room.String()] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	event, err := hub.NewEvent(chat.EventMessageHistory, history)
	if err != nil {
		return fmt.Errorf("NewEvent: %w", err)
	}
	h.send(c, event)
	h.logger.Info("joined room", slog.String("user", c.userID), slog.String("room", room.String()))
	return nil
}

func (h *Hub) leave(c *conn, room chat.RoomIdentity) {
	h.mu.Lock()
	if members, ok := h.rooms[room.String()]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room.String())
		}
	}
	h.mu.Unlock()
	h.logger.Info("left room", slog.String("user", c.userID), slog.String("room", room.String()))
}

// sendMessage persists the draft and broadcasts the confirmed message to
// every member of the room, the sender included. The sender sees its own
// message through the same live push as everyone else.
func (h *Hub) sendMessage(c *conn, draft chat.Draft) error {
	msg, err := h.store.SaveMessage(context.Background(), draft)
	if err != nil {
		return fmt.Errorf("SaveMessage: %w", err)
	}

	event, err := hub.NewEvent(chat.EventMessage, msg)
	if err != nil {
		return fmt.Errorf("NewEvent: %w", err)
	}

	h.mu.RLock()
	members := make([]*conn, 0)
	for member := range h.rooms[draft.Room.String()] {
		members = append(members, member)
	}
	h.mu.RUnlock()

	for _, member := range members {
		h.send(member, event)
	}
	return nil
}

// send delivers a frame to a connection. A client whose send buffer is
// full is disconnected rather than allowed to block the hub.
func (h *Hub) send(c *conn, f *hub.Frame) {
	select {
	case c.out <- f:
	case <-c.done:
	default:
		h.disconnect(c)
	}
}

func (h *Hub) disconnect(c *conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	for key, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	h.mu.Unlock()

	close(c.done)
	h.logger.Info("disconnected", slog.String("user", c.userID))
}
