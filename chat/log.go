package chat

import (
	"sort"
	"sync"
	"time"
)

// MessageLog is an ordered, deduplicated, append-only view of the messages
// in one room. It accepts the history batch pushed after a join and single
// live pushes, merges them idempotently, and exposes rendering-ready
// projections. Because a merge is a pure, order-independent fold, history
// and live pushes may interleave with sends in any order without locks
// beyond the log's own mutex.
//
// The log lives exactly as long as the session that feeds it; navigating to
// a different room recreates it rather than rehydrating it.
type MessageLog struct {
	mu      sync.Mutex
	entries []Message
	seen    map[string]struct{}
}

func NewMessageLog() *MessageLog {
	return &MessageLog{
		seen: make(map[string]struct{}),
	}
}

// Merge folds a batch of messages into the log. Messages whose id is
// already present are skipped, so at-least-once delivery from the transport
// (for example a history batch re-sent after a reconnect race) never
// produces duplicates. The full collection is re-sorted by sent time,
// ties broken by arrival order, because history batches can arrive out of
// timestamp order relative to already-buffered live messages.
//
// It returns the number of messages actually inserted.
func (l *MessageLog) Merge(incoming ...Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for _, m := range incoming {
		if _, ok := l.seen[m.ID]; ok {
			continue
		}
		l.seen[m.ID] = struct{}{}
		l.entries = append(l.entries, m)
		added++
	}
	if added > 0 {
		sort.SliceStable(l.entries, func(i, j int) bool {
			return l.entries[i].SentAt.Before(l.entries[j].SentAt)
		})
	}
	return added
}

// Messages returns a copy of the log in display order.
func (l *MessageLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of distinct messages in the log.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// DayGroup is a contiguous run of messages sharing a calendar day, used for
// rendering date separators. Day is midnight of that day in the grouping
// location.
type DayGroup struct {
	Day      time.Time
	Messages []Message
}

// GroupedByDay partitions the log into contiguous calendar-day runs in the
// given location. A nil location groups in time.Local. The projection is
// derived; it never changes stored order.
func (l *MessageLog) GroupedByDay(loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	msgs := l.Messages()

	var groups []DayGroup
	for _, m := range msgs {
		day := startOfDay(m.SentAt, loc)
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DayGroup{Day: day, Messages: []Message{m}})
	}
	return groups
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
