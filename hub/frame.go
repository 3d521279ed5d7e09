package hub

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	// FrameInvocation is a client-to-hub remote method call.
	FrameInvocation = "invocation"
	// FrameResult acknowledges or rejects an invocation, correlated by id.
	FrameResult = "result"
	// FrameEvent is a hub-to-client push.
	FrameEvent = "event"
)

// Frame is the wire unit of the hub protocol, one JSON object per websocket
// text message. Which fields are meaningful depends on Type.
type Frame struct {
	ID      string            `json:"id,omitempty"`
	Type    string            `json:"type"`
	Method  string            `json:"method,omitempty"`
	Args    []json.RawMessage `json:"args,omitempty"`
	Event   string            `json:"event,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (f Frame) String() string {
	switch f.Type {
	case FrameInvocation:
		return fmt.Sprintf("Frame{ID: %s, Invocation: %s, Args: %d}", f.ID, f.Method, len(f.Args))
	case FrameEvent:
		return fmt.Sprintf("Frame{Event: %s, Payload.Size: %d}", f.Event, len(f.Payload))
	default:
		return fmt.Sprintf("Frame{ID: %s, Type: %s, Error: %q}", f.ID, f.Type, f.Error)
	}
}

// NewInvocation builds an invocation frame with a fresh correlation id.
func NewInvocation(method string, args ...any) (*Frame, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal arg: %w", err)
		}
		raw = append(raw, b)
	}
	return &Frame{
		ID:     uuid.New().String(),
		Type:   FrameInvocation,
		Method: method,
		Args:   raw,
	}, nil
}

// NewResult builds a success result for an invocation.
func NewResult(id string) *Frame {
	return &Frame{ID: id, Type: FrameResult}
}

// NewErrorResult builds a rejection result for an invocation.
func NewErrorResult(id, msg string) *Frame {
	return &Frame{ID: id, Type: FrameResult, Error: msg}
}

// NewEvent builds a push frame.
func NewEvent(event string, payload any) (*Frame, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Frame{Type: FrameEvent, Event: event, Payload: b}, nil
}

// EncodeFrame writes a frame as one JSON document.
func EncodeFrame(w io.Writer, f *Frame) error {
	if err := json.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return nil
}

// DecodeFrame reads one JSON document into a frame.
func DecodeFrame(r io.Reader, f *Frame) error {
	if err := json.NewDecoder(r).Decode(f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
