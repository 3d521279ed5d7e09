package conversation

import (
	"github.com/putto11262002/deliverchat/chat"
)

// Offer is the delivery offer record as returned by the marketplace API.
// Both participants are nested on the record, so resolving the counterparty
// needs no extra round trip.
type Offer struct {
	ID          string              `json:"id"`
	Driver      chat.ParticipantRef `json:"driver"`
	Sender      chat.ParticipantRef `json:"sender"`
	Origin      string              `json:"origin"`
	Destination string              `json:"destination"`
	Price       float64             `json:"price"`
	Status      string              `json:"status"`
}

// Order is the delivery order record. Driver is nil until a driver takes
// the order.
type Order struct {
	ID          string               `json:"id"`
	Sender      chat.ParticipantRef  `json:"sender"`
	Driver      *chat.ParticipantRef `json:"driver"`
	Origin      string               `json:"origin"`
	Destination string               `json:"destination"`
	Price       float64              `json:"price"`
	Status      string               `json:"status"`
}

// Envelope is the JSON wrapper every marketplace REST endpoint responds
// with.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}
