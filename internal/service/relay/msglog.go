package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/clipdesk/backend/internal/model/event"
)

// LogCapacity bounds the diagnostic message log; the oldest entry is evicted
// once the capacity is reached.
const LogCapacity = 1000

// LogEntry is a compact diagnostic record of one routed message.
type LogEntry struct {
	ID          string     `json:"id"`
	Type        event.Type `json:"type"`
	UserUUID    string     `json:"userUuid"`
	ChannelName string     `json:"channelName"`
	Timestamp   int64      `json:"timestamp"`
}

// MessageLog is a bounded in-memory ring of routed-message records. It is an
// observability aid only and carries no correctness-critical state.
type MessageLog struct {
	mu       sync.Mutex
	entries  []LogEntry
	capacity int
}

// NewMessageLog returns an empty log bounded to capacity entries.
func NewMessageLog(capacity int) *MessageLog {
	if capacity < 1 {
		capacity = 1
	}
	return &MessageLog{
		entries:  make([]LogEntry, 0, capacity),
		capacity: capacity,
	}
}

// Append records one routed message, evicting the oldest entry on overflow.
func (l *MessageLog) Append(msg event.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{
		ID:          uuid.NewString(),
		Type:        msg.Type,
		UserUUID:    msg.UserUUID,
		ChannelName: msg.ChannelName,
		Timestamp:   msg.Timestamp,
	}

	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = entry
		return
	}
	l.entries = append(l.entries, entry)
}

// Len returns the current number of entries.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Recent returns up to n entries, newest last.
func (l *MessageLog) Recent(n int) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	recent := make([]LogEntry, n)
	copy(recent, l.entries[len(l.entries)-n:])
	return recent
}
