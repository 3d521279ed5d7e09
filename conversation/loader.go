// Package conversation resolves a room identity plus the current user into
// a fully-loaded conversation: the offer or order record, the caller's
// short profile, the counterparty, and the caller's role. Pure fetch
// orchestration; no chat protocol logic lives here.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/putto11262002/deliverchat/chat"
)

var (
	// ErrContextUnavailable is returned when any of the metadata fetches
	// fails or the room's target record does not exist. A session must
	// not be constructed without a successfully loaded conversation.
	ErrContextUnavailable = errors.New("conversation context unavailable")
)

// Loader fetches conversation metadata from the marketplace REST API.
type Loader struct {
	baseURL string
	client  *http.Client
}

type LoaderOption func(*Loader)

func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		l.client = client
	}
}

func NewLoader(baseURL string, opts ...LoaderOption) *Loader {
	l := &Loader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves the conversation for a room and the current user. The
// record and the user's short profile are fetched concurrently; both must
// succeed before the conversation is assembled.
func (l *Loader) Load(ctx context.Context, room chat.RoomIdentity, currentUserID string) (*chat.Conversation, error) {
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}
	if currentUserID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrContextUnavailable)
	}

	var (
		self  chat.ParticipantRef
		offer Offer
		order Order
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		self, err = fetch[chat.ParticipantRef](gctx, l.client, l.baseURL+"/api/users/"+currentUserID)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		switch room.Kind {
		case chat.OfferRoom:
			offer, err = fetch[Offer](gctx, l.client, l.baseURL+"/api/offers/"+room.ID)
		case chat.OrderRoom:
			order, err = fetch[Order](gctx, l.client, l.baseURL+"/api/orders/"+room.ID)
		}
		if err != nil {
			return fmt.Errorf("fetch %s: %w", room.Kind, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextUnavailable, err)
	}

	conv := &chat.Conversation{
		Room: room,
		Self: self,
	}
	switch room.Kind {
	case chat.OfferRoom:
		resolveOffer(conv, offer, currentUserID)
	case chat.OrderRoom:
		resolveOrder(conv, order, currentUserID)
	}
	return conv, nil
}

func resolveOffer(conv *chat.Conversation, offer Offer, currentUserID string) {
	if currentUserID == offer.Driver.ID {
		conv.Role = chat.RoleDriver
		conv.Counterparty = offer.Sender
	} else {
		conv.Role = chat.RoleSender
		conv.Counterparty = offer.Driver
	}
	conv.Meta = chat.RoomMeta{
		Origin:      offer.Origin,
		Destination: offer.Destination,
		Price:       offer.Price,
		Status:      offer.Status,
	}
}

// resolveOrder tolerates an order without an assigned driver: the role
// defaults to sender and the counterparty stays empty until assignment.
func resolveOrder(conv *chat.Conversation, order Order, currentUserID string) {
	if order.Driver != nil && currentUserID == order.Driver.ID {
		conv.Role = chat.RoleDriver
		conv.Counterparty = order.Sender
	} else {
		conv.Role = chat.RoleSender
		if order.Driver != nil {
			conv.Counterparty = *order.Driver
		}
	}
	conv.Meta = chat.RoomMeta{
		Origin:      order.Origin,
		Destination: order.Destination,
		Price:       order.Price,
		Status:      order.Status,
	}
}

func fetch[T any](ctx context.Context, client *http.Client, url string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zero, fmt.Errorf("NewRequest: %w", err)
	}
	res, err := client.Do(req)
	if err != nil {
		return zero, fmt.Errorf("Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("unexpected status %d", res.StatusCode)
	}

	var env Envelope[T]
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return zero, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		return zero, fmt.Errorf("request not successful")
	}
	return env.Data, nil
}
