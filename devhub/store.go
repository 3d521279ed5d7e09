package devhub

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/putto11262002/deliverchat/chat"
)

const defaultHistoryLimit = 100

// MessageStore persists room messages so the hub can serve the history
// push after a join.
type MessageStore interface {
	// SaveMessage assigns the message id and server timestamp and stores
	// the confirmed message.
	SaveMessage(ctx context.Context, draft chat.Draft) (*chat.Message, error)

	// RoomMessages returns the room's messages ascending by sent time.
	// A zero limit defaults to 100.
	RoomMessages(ctx context.Context, room chat.RoomIdentity, limit int) ([]chat.Message, error)
}

type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db}
}

func (s *SQLiteMessageStore) SaveMessage(ctx context.Context, draft chat.Draft) (*chat.Message, error) {
	if err := draft.Room.Validate(); err != nil {
		return nil, err
	}

	msg := &chat.Message{
		ID:         uuid.New().String(),
		SenderID:   draft.SenderID,
		ReceiverID: draft.ReceiverID,
		Room:       draft.Room,
		Text:       draft.Text,
		SentAt:     time.Now().UTC(),
	}

	query := `INSERT INTO messages (id, room_kind, room_id, sender_id, receiver_id, text, sent_at)
	          VALUES (@id, @room_kind, @room_id, @sender_id, @receiver_id, @text, @sent_at)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("id", msg.ID),
		sql.Named("room_kind", string(msg.Room.Kind)),
		sql.Named("room_id", msg.Room.ID),
		sql.Named("sender_id", msg.SenderID),
		sql.Named("receiver_id", msg.ReceiverID),
		sql.Named("text", msg.Text),
		sql.Named("sent_at", msg.SentAt),
	)
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert message): %w", err)
	}
	return msg, nil
}

func (s *SQLiteMessageStore) RoomMessages(ctx context.Context, room chat.RoomIdentity, limit int) ([]chat.Message, error) {
	if err := room.Validate(); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	query := `SELECT id, room_kind, room_id, sender_id, receiver_id, text, sent_at
	          FROM messages
	          WHERE room_kind = @room_kind AND room_id = @room_id
	          ORDER BY sent_at ASC
	          LIMIT @limit`
	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("room_kind", string(room.Kind)),
		sql.Named("room_id", room.ID),
		sql.Named("limit", limit),
	)
	if err != nil {
		return nil, fmt.Errorf("QueryContext(messages): %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		var kind string
		if err := rows.Scan(&m.ID, &kind, &m.Room.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.SentAt); err != nil {
			return nil, fmt.Errorf("Scan: %w", err)
		}
		m.Room.Kind = chat.RoomKind(kind)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return msgs, nil
}
