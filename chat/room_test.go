package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIdentity(t *testing.T) {

	t.Run("offer room methods", func(t *testing.T) {
		r := RoomIdentity{Kind: OfferRoom, ID: "OFFER-1"}
		m := r.Methods()
		assert.Equal(t, "JoinOfferRoom", m.Join)
		assert.Equal(t, "LeaveOfferRoom", m.Leave)
		assert.Equal(t, "SendMessageToOffer", m.Send)
	})

	t.Run("order room methods", func(t *testing.T) {
		r := RoomIdentity{Kind: OrderRoom, ID: "ORDER-1"}
		m := r.Methods()
		assert.Equal(t, "JoinOrderRoom", m.Join)
		assert.Equal(t, "LeaveOrderRoom", m.Leave)
		assert.Equal(t, "SendMessageToOrder", m.Send)
	})

	t.Run("validate rejects empty id", func(t *testing.T) {
		err := RoomIdentity{Kind: OfferRoom}.Validate()
		assert.ErrorIs(t, err, ErrInvalidRoom)
	})

	t.Run("validate rejects unknown kind", func(t *testing.T) {
		err := RoomIdentity{Kind: "parcel", ID: "1"}.Validate()
		assert.ErrorIs(t, err, ErrInvalidRoom)
	})
}

func TestQuickReplies(t *testing.T) {
	t.Run("each role has its own catalog", func(t *testing.T) {
		driver := QuickReplies(RoleDriver)
		sender := QuickReplies(RoleSender)
		assert.NotEmpty(t, driver)
		assert.NotEmpty(t, sender)
		assert.NotEqual(t, driver, sender)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		replies := QuickReplies(RoleDriver)
		replies[0] = "mutated"
		assert.NotEqual(t, "mutated", QuickReplies(RoleDriver)[0])
	})

	t.Run("unknown role yields nil", func(t *testing.T) {
		assert.Nil(t, QuickReplies("dispatcher"))
	})
}
