// Package session owns the lifecycle of one real-time conversation: it
// keeps exactly one hub connection's room membership consistent with the
// displayed room, feeds inbound pushes into a message log, and carries
// outbound sends. One session per displayed room; changing room means
// tearing the session down and constructing a new one.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/putto11262002/deliverchat/chat"
	"github.com/putto11262002/deliverchat/hub"
)

// State is the connection state of a session. It is owned exclusively by
// the session; callers only observe it.
type State int

const (
	Idle State = iota
	Connecting
	Joined
	Reconnecting
	Disconnected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	case Reconnecting:
		return "reconnecting"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrConnectFailed is returned when the transport or the room join
	// could not establish a usable session. Terminal: the caller must
	// construct a new session to retry.
	ErrConnectFailed = errors.New("connect failed")
	// ErrNotConnected is returned by Send while the session is not
	// joined. Recoverable: the caller may retry once rejoined.
	ErrNotConnected = errors.New("not connected")
	// ErrSendFailed is returned when the remote send call rejected the
	// draft. Recoverable: the caller keeps the draft text for retry.
	ErrSendFailed = errors.New("send failed")
	// ErrEmptyMessage is returned by Send for whitespace-only text.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNoCounterparty is returned by Send when the conversation has no
	// second participant, such as an order room before a driver takes the
	// order. Not retryable within this session: assignment means loading
	// a new conversation and constructing a new session.
	ErrNoCounterparty = errors.New("no counterparty in conversation")
)

var validate = validator.New()

// Session is the chat session state machine.
//
//	Idle -> Connecting -> Joined <-> Reconnecting
//	                \-> Failed        \-> Failed
//	Joined | Reconnecting -> Disconnected (teardown)
//
// Transient transport drops are absorbed as Reconnecting and never surface
// as errors; on restore the per-kind join is re-issued because the server
// is not assumed to remember membership across a drop.
type Session struct {
	conv      chat.Conversation
	transport hub.Transport
	log       *chat.MessageLog
	logger    *slog.Logger

	leaveTimeout time.Duration
	joinTimeout  time.Duration

	mu        sync.Mutex
	state     State
	closed    bool
	observers []func(State)
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLeaveTimeout bounds the best-effort leave call during teardown.
func WithLeaveTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.leaveTimeout = d
	}
}

// New constructs a session for a loaded conversation. The conversation must
// come from a successful loader call; a session is never constructed
// without one.
func New(conv chat.Conversation, transport hub.Transport, log *chat.MessageLog, opts ...Option) (*Session, error) {
	if err := conv.Room.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = chat.NewMessageLog()
	}
	s := &Session{
		conv:         conv,
		transport:    transport,
		log:          log,
		logger:       slog.Default(),
		leaveTimeout: 5 * time.Second,
		joinTimeout:  10 * time.Second,
		state:        Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Log returns the message log the session feeds.
func (s *Session) Log() *chat.MessageLog {
	return s.log
}

// Conversation returns the loaded conversation the session was built from.
func (s *Session) Conversation() chat.Conversation {
	return s.conv
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnStateChange registers an observer invoked on every state transition.
// Register before Start.
func (s *Session) OnStateChange(f func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, f)
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	observers := make([]func(State), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	s.logger.Info("session state", slog.String("room", s.conv.Room.String()),
		slog.String("state", next.String()))
	for _, f := range observers {
		f(next)
	}
}

// Start connects the transport and joins the room. Either step failing
// leaves the session in Failed: a connection without room membership is
// useless, so a join rejection is treated the same as a connect failure.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("session: start from state %s", s.state)
	}
	s.mu.Unlock()

	// subscriptions must be in place before the join so the history push
	// cannot be missed
	s.transport.On(chat.EventMessageHistory, s.onHistory)
	s.transport.On(chat.EventMessage, s.onMessage)
	s.transport.OnConnectionDown(s.onConnectionDown)
	s.transport.OnConnectionUp(s.onConnectionUp)

	s.setState(Connecting)

	if err := s.transport.Connect(ctx); err != nil {
		s.setState(Failed)
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	methods := s.conv.Room.Methods()
	if err := s.transport.Invoke(ctx, methods.Join, s.conv.Room.ID); err != nil {
		s.setState(Failed)
		s.transport.Stop(ctx)
		return fmt.Errorf("%w: %s: %v", ErrConnectFailed, methods.Join, err)
	}

	s.setState(Joined)
	return nil
}

// Send trims and sends text to the room. The receiver is derived from the
// conversation's two participants, never from user input. The confirmed
// message comes back through the live push; no optimistic copy is appended
// locally.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	if s.conv.Counterparty.ID == "" {
		return ErrNoCounterparty
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != Joined {
		return fmt.Errorf("%w: state %s", ErrNotConnected, state)
	}

	draft := chat.Draft{
		SenderID:   s.conv.Self.ID,
		ReceiverID: s.conv.Counterparty.ID,
		Room:       s.conv.Room,
		Text:       text,
	}
	if err := validate.Struct(draft); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	methods := s.conv.Room.Methods()
	if err := s.transport.Invoke(ctx, methods.Send, draft); err != nil {
		if errors.Is(err, hub.ErrNotConnected) {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Close tears the session down: it stops feeding the log, best-effort
// leaves the room within the leave timeout, and unconditionally stops the
// transport. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	state := s.state
	s.mu.Unlock()

	if state == Joined || state == Reconnecting {
		methods := s.conv.Room.Methods()
		leaveCtx, cancel := context.WithTimeout(ctx, s.leaveTimeout)
		if err := s.transport.Invoke(leaveCtx, methods.Leave, s.conv.Room.ID); err != nil {
			s.logger.Debug(fmt.Sprintf("%s: %v", methods.Leave, err))
		}
		cancel()
	}

	err := s.transport.Stop(ctx)

	if state != Failed {
		s.setState(Disconnected)
	}
	return err
}

func (s *Session) onConnectionDown(err error) {
	s.mu.Lock()
	closed := s.closed
	state := s.state
	s.mu.Unlock()
	if closed || state != Joined {
		return
	}
	s.setState(Reconnecting)
}

// onConnectionUp re-issues the room join after every transport-level
// reconnect. The history push that follows is merged, not applied as a
// replacement, so messages buffered before the drop are kept.
func (s *Session) onConnectionUp() {
	s.mu.Lock()
	closed := s.closed
	state := s.state
	s.mu.Unlock()
	if closed || state != Reconnecting {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.joinTimeout)
	defer cancel()
	methods := s.conv.Room.Methods()
	if err := s.transport.Invoke(ctx, methods.Join, s.conv.Room.ID); err != nil {
		// another drop mid-rejoin is still transient: stay in
		// Reconnecting and let the next connection-up retry the join
		if errors.Is(err, hub.ErrNotConnected) {
			s.logger.Debug(fmt.Sprintf("rejoin %s: %v", methods.Join, err))
			return
		}
		s.logger.Error(fmt.Sprintf("rejoin %s: %v", methods.Join, err))
		s.setState(Failed)
		return
	}
	s.setState(Joined)
}

func (s *Session) onHistory(payload json.RawMessage) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	var batch []chat.Message
	if err := json.Unmarshal(payload, &batch); err != nil {
		s.logger.Error(fmt.Sprintf("unmarshal history: %v", err))
		return
	}
	s.log.Merge(batch...)
}

func (s *Session) onMessage(payload json.RawMessage) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	var msg chat.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Error(fmt.Sprintf("unmarshal message: %v", err))
		return
	}
	s.log.Merge(msg)
}
