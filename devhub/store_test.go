package devhub

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/putto11262002/deliverchat/chat"
)

var (
	offerRoom = chat.RoomIdentity{Kind: chat.OfferRoom, ID: "OFFER-1"}
	orderRoom = chat.RoomIdentity{Kind: chat.OrderRoom, ID: "ORDER-1"}
)

type storeFixture struct {
	store *SQLiteMessageStore
	db    *sql.DB
	ctx   context.Context
	t     *testing.T
}

func newStoreFixture(t *testing.T) *storeFixture {
	// a named in-memory database keeps the schema visible across the
	// pool's connections without leaking between tests
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite3", dsn)
	require.Nil(t, err)
	t.Cleanup(func() { db.Close() })

	goose.SetBaseFS(os.DirFS("../migrations"))
	require.Nil(t, goose.SetDialect("sqlite3"))
	require.Nil(t, goose.Up(db, "."))

	return &storeFixture{
		store: NewSQLiteMessageStore(db),
		db:    db,
		ctx:   context.Background(),
		t:     t,
	}
}

func (f *storeFixture) seed(room chat.RoomIdentity, texts ...string) []chat.Message {
	f.t.Helper()
	msgs := make([]chat.Message, 0, len(texts))
	for _, text := range texts {
		msg, err := f.store.SaveMessage(f.ctx, chat.Draft{
			SenderID:   "U1",
			ReceiverID: "U2",
			Room:       room,
			Text:       text,
		})
		require.Nil(f.t, err)
		msgs = append(msgs, *msg)
		// sqlite timestamps are where history ordering comes from
		time.Sleep(2 * time.Millisecond)
	}
	return msgs
}

func TestSaveMessage(t *testing.T) {

	t.Run("assigns id and server timestamp", func(t *testing.T) {
		f := newStoreFixture(t)
		msg, err := f.store.SaveMessage(f.ctx, chat.Draft{
			SenderID: "U1", ReceiverID: "U2", Room: offerRoom, Text: "hi",
		})
		require.Nil(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.WithinDuration(t, time.Now().UTC(), msg.SentAt, time.Minute)
		assert.Equal(t, offerRoom, msg.Room)
	})

	t.Run("rejects an invalid room", func(t *testing.T) {
		f := newStoreFixture(t)
		_, err := f.store.SaveMessage(f.ctx, chat.Draft{
			SenderID: "U1", ReceiverID: "U2", Text: "hi",
		})
		assert.ErrorIs(t, err, chat.ErrInvalidRoom)
	})
}

func TestRoomMessages(t *testing.T) {

	t.Run("returns messages ascending by sent time", func(t *testing.T) {
		f := newStoreFixture(t)
		seeded := f.seed(offerRoom, "one", "two", "three")

		msgs, err := f.store.RoomMessages(f.ctx, offerRoom, 0)
		require.Nil(t, err)
		require.Len(t, msgs, 3)
		for i, m := range msgs {
			assert.Equal(t, seeded[i].ID, m.ID)
			assert.Equal(t, seeded[i].Text, m.Text)
		}
	})

	t.Run("scopes by room kind and id", func(t *testing.T) {
		f := newStoreFixture(t)
		f.seed(offerRoom, "offer msg")
		f.seed(orderRoom, "order msg")
		// same id, different kind
		f.seed(chat.RoomIdentity{Kind: chat.OrderRoom, ID: "OFFER-1"}, "other kind")

		msgs, err := f.store.RoomMessages(f.ctx, offerRoom, 0)
		require.Nil(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "offer msg", msgs[0].Text)
	})

	t.Run("respects the limit", func(t *testing.T) {
		f := newStoreFixture(t)
		f.seed(offerRoom, "one", "two", "three")

		msgs, err := f.store.RoomMessages(f.ctx, offerRoom, 2)
		require.Nil(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("empty room yields no messages", func(t *testing.T) {
		f := newStoreFixture(t)
		msgs, err := f.store.RoomMessages(f.ctx, offerRoom, 0)
		require.Nil(t, err)
		assert.Empty(t, msgs)
	})
}
