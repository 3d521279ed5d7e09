package devhub

import (
	"sync"

	"github.com/putto11262002/deliverchat/chat"
	"github.com/putto11262002/deliverchat/conversation"
)

// Directory holds the marketplace records the REST collaborators serve.
// Records are seeded; the marketplace itself is out of scope, the loader
// just needs something real to fetch.
type Directory struct {
	mu     sync.RWMutex
	offers map[string]conversation.Offer
	orders map[string]conversation.Order
	users  map[string]chat.ParticipantRef
}

func NewDirectory() *Directory {
	return &Directory{
		offers: make(map[string]conversation.Offer),
		orders: make(map[string]conversation.Order),
		users:  make(map[string]chat.ParticipantRef),
	}
}

func (d *Directory) SeedOffer(o conversation.Offer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offers[o.ID] = o
}

func (d *Directory) SeedOrder(o conversation.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orders[o.ID] = o
}

func (d *Directory) SeedUser(u chat.ParticipantRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) Offer(id string) (conversation.Offer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.offers[id]
	return o, ok
}

func (d *Directory) Order(id string) (conversation.Order, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.orders[id]
	return o, ok
}

func (d *Directory) User(id string) (chat.ParticipantRef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	return u, ok
}
