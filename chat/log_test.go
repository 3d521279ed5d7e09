package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logRoom = RoomIdentity{Kind: OfferRoom, ID: "OFFER-1"}

func msg(id string, sentAt time.Time) Message {
	return Message{
		ID:       id,
		SenderID: "U1",
		Room:     logRoom,
		Text:     "text " + id,
		SentAt:   sentAt,
	}
}

func ids(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMerge(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("orders by sent time regardless of arrival order", func(t *testing.T) {
		log := NewMessageLog()
		added := log.Merge(msg("B", base.Add(2*time.Second)), msg("A", base.Add(time.Second)))
		require.Equal(t, 2, added)
		assert.Equal(t, []string{"A", "B"}, ids(log.Messages()))
	})

	t.Run("merging the same batch twice is a no-op", func(t *testing.T) {
		log := NewMessageLog()
		batch := []Message{msg("A", base), msg("B", base.Add(time.Second))}
		log.Merge(batch...)
		added := log.Merge(batch...)
		assert.Equal(t, 0, added)
		assert.Equal(t, []string{"A", "B"}, ids(log.Messages()))
	})

	t.Run("duplicate id in a later push is dropped", func(t *testing.T) {
		log := NewMessageLog()
		log.Merge(msg("A", base))
		// same id re-delivered with a different timestamp must not move
		// or duplicate the entry
		log.Merge(msg("A", base.Add(time.Hour)))
		msgs := log.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, base, msgs[0].SentAt)
	})

	t.Run("equal sent times keep arrival order", func(t *testing.T) {
		log := NewMessageLog()
		log.Merge(msg("first", base))
		log.Merge(msg("second", base))
		log.Merge(msg("third", base))
		assert.Equal(t, []string{"first", "second", "third"}, ids(log.Messages()))
	})

	t.Run("history batch interleaves with buffered live messages", func(t *testing.T) {
		log := NewMessageLog()
		// live messages buffered during a reconnect race
		log.Merge(msg("live1", base.Add(30*time.Second)))
		log.Merge(msg("live2", base.Add(50*time.Second)))
		// authoritative history arrives afterwards, overlapping
		added := log.Merge(
			msg("old", base),
			msg("live1", base.Add(30*time.Second)),
			msg("mid", base.Add(40*time.Second)),
		)
		assert.Equal(t, 2, added)
		assert.Equal(t, []string{"old", "live1", "mid", "live2"}, ids(log.Messages()))
	})

	t.Run("messages returns a copy", func(t *testing.T) {
		log := NewMessageLog()
		log.Merge(msg("A", base))
		out := log.Messages()
		out[0].Text = "mutated"
		assert.Equal(t, "text A", log.Messages()[0].Text)
	})
}

func TestGroupedByDay(t *testing.T) {
	day1 := time.Date(2024, 3, 10, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC)

	t.Run("partitions contiguous runs by calendar day", func(t *testing.T) {
		log := NewMessageLog()
		log.Merge(msg("A", day1), msg("B", day1.Add(10*time.Minute)), msg("C", day2))

		groups := log.GroupedByDay(time.UTC)
		require.Len(t, groups, 2)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), groups[0].Day)
		assert.Equal(t, []string{"A", "B"}, ids(groups[0].Messages))
		assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), groups[1].Day)
		assert.Equal(t, []string{"C"}, ids(groups[1].Messages))
	})

	t.Run("grouping respects the supplied location", func(t *testing.T) {
		log := NewMessageLog()
		// 23:00 UTC on day 1 is already day 2 two hours east
		log.Merge(msg("A", day1), msg("B", day2))

		east := time.FixedZone("UTC+2", 2*60*60)
		groups := log.GroupedByDay(east)
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"A", "B"}, ids(groups[0].Messages))
	})

	t.Run("out of order merge yields ordered projection", func(t *testing.T) {
		log := NewMessageLog()
		log.Merge(msg("B", day1.Add(time.Second)))
		log.Merge(msg("A", day1))
		groups := log.GroupedByDay(time.UTC)
		require.Len(t, groups, 1)
		assert.Equal(t, []string{"A", "B"}, ids(groups[0].Messages))
		assert.Equal(t, []string{"A", "B"}, ids(log.Messages()))
	})

	t.Run("empty log yields no groups", func(t *testing.T) {
		log := NewMessageLog()
		assert.Empty(t, log.GroupedByDay(time.UTC))
	})
}
