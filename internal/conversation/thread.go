package conversation

import (
	"time"

	"github.com/haasonsaas/ensemble/pkg/models"
)

// Thread is one conversation topic within a channel: a bounded, ordered
// sequence of messages. Threads are owned by the Store; values handed out by
// the Store are snapshots and safe to read without locking.
type Thread struct {
	// ID is derived from the channel and creation time:
	// "{channel_id}_{unix_timestamp}", with a numeric suffix when two
	// threads are created within the same second.
	ID        string
	ChannelID string

	CreatedAt  time.Time
	LastActive time.Time

	// Messages is append-only in arrival order, trimmed oldest-first once
	// the store's per-thread bound is exceeded. Never empty after creation.
	Messages []*models.Message

	// TopicSummary is a short mutable label, overwritten by routing
	// decisions.
	TopicSummary string
}

// RecentMessages returns up to limit messages from the end of the thread,
// oldest of the window first.
func (t *Thread) RecentMessages(limit int) []*models.Message {
	if limit <= 0 || len(t.Messages) <= limit {
		return t.Messages
	}
	return t.Messages[len(t.Messages)-limit:]
}

// MessageByID returns the message with the given ID, or nil.
func (t *Thread) MessageByID(id string) *models.Message {
	for _, msg := range t.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// IsStale reports whether the thread has been inactive longer than
// threshold as of now. Stale threads are excluded from routing candidates.
func (t *Thread) IsStale(threshold time.Duration, now time.Time) bool {
	return now.Sub(t.LastActive) > threshold
}

// clone returns a snapshot safe to hand outside the store. Message values
// are immutable, so the slice is copied but the messages are shared.
func (t *Thread) clone() *Thread {
	cp := *t
	cp.Messages = make([]*models.Message, len(t.Messages))
	copy(cp.Messages, t.Messages)
	return &cp
}
