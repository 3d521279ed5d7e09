package chat

import (
	"time"
)

const (
	// RoleDriver is the participant that carries the delivery.
	RoleDriver Role = "driver"
	// RoleSender is the participant that requested the delivery.
	RoleSender Role = "sender"
)

// Role is the caller's side of a conversation.
type Role string

// ParticipantRef is a read-only projection of a user's short profile as
// fetched from the profile service. The chat subsystem never mutates it.
type ParticipantRef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ImagePath   string  `json:"imagePath,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	PhoneNumber string  `json:"phoneNumber,omitempty"`
	Email       string  `json:"email,omitempty"`
}

// Message is a confirmed chat message. The id is assigned server-side on a
// successful send; a message is immutable once received.
type Message struct {
	ID         string       `json:"id"`
	SenderID   string       `json:"senderId"`
	ReceiverID string       `json:"receiverId"`
	Room       RoomIdentity `json:"room"`
	Text       string       `json:"text"`
	SentAt     time.Time    `json:"sentAt"`
}

// Draft is an outbound message before server confirmation. Drafts never
// carry an id; the confirmed Message comes back through the live push.
type Draft struct {
	SenderID   string       `json:"senderId" validate:"required"`
	ReceiverID string       `json:"receiverId" validate:"required"`
	Room       RoomIdentity `json:"room"`
	Text       string       `json:"text" validate:"required"`
}

// RoomMeta is display metadata carried on the conversation for rendering
// the chat header. Price and status are only meaningful for order rooms on
// some backends; zero values mean not applicable.
type RoomMeta struct {
	Origin      string  `json:"origin,omitempty"`
	Destination string  `json:"destination,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// Conversation aggregates everything the chat view needs: the room, the two
// participants, the caller's role, and header metadata. It is created once
// per view by the conversation loader and torn down together with the
// session that uses it.
type Conversation struct {
	Room         RoomIdentity
	Self         ParticipantRef
	Counterparty ParticipantRef
	Role         Role
	Meta         RoomMeta
}
