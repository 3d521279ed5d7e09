package chat

import (
	"errors"
	"fmt"
)

const (
	// OfferRoom is a conversation scoped to a delivery offer (a trip
	// published by a driver).
	OfferRoom RoomKind = "offer"
	// OrderRoom is a conversation scoped to a delivery order (a request
	// published by a sender).
	OrderRoom RoomKind = "order"
)

// RoomKind discriminates the two conversation scopes supported by the hub.
type RoomKind string

const (
	// EventMessageHistory delivers the batch of prior messages once per
	// successful room join, including re-joins after a reconnect.
	EventMessageHistory = "ReceiveMessageHistory"
	// EventMessage delivers each new message in the room while joined.
	EventMessage = "ReceiveMessage"
)

var (
	// ErrInvalidRoom is returned when a room identity has an unknown kind
	// or an empty id.
	ErrInvalidRoom = errors.New("invalid room")
)

// RoomIdentity identifies one conversation channel on the hub. Exactly one
// of the two kinds applies; the identity is immutable for the lifetime of a
// session. Changing conversation requires tearing the session down and
// constructing a new one.
type RoomIdentity struct {
	Kind RoomKind `json:"kind"`
	ID   string   `json:"id"`
}

// RoomMethods is the per-kind table of remote method names understood by the
// hub for a room. Both kinds expose the same three operations under
// kind-specific names.
type RoomMethods struct {
	Join  string
	Leave string
	Send  string
}

var roomMethods = map[RoomKind]RoomMethods{
	OfferRoom: {Join: "JoinOfferRoom", Leave: "LeaveOfferRoom", Send: "SendMessageToOffer"},
	OrderRoom: {Join: "JoinOrderRoom", Leave: "LeaveOrderRoom", Send: "SendMessageToOrder"},
}

func (r RoomIdentity) Validate() error {
	if r.ID == "" {
		return ErrInvalidRoom
	}
	if _, ok := roomMethods[r.Kind]; !ok {
		return ErrInvalidRoom
	}
	return nil
}

// Methods returns the remote method names for the room's kind.
// The identity must be valid.
func (r RoomIdentity) Methods() RoomMethods {
	m, ok := roomMethods[r.Kind]
	if !ok {
		panic(fmt.Sprintf("chat: unknown room kind %q", r.Kind))
	}
	return m
}

func (r RoomIdentity) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}
