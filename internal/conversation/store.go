// Package conversation owns all conversation-thread state for the process:
// creation, lookup, appending, staleness, and size-bounded trimming.
package conversation

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/haasonsaas/ensemble/pkg/models"
)

// Defaults for store bounds.
const (
	DefaultMaxMessagesPerConversation = 200
	DefaultMaxConversations           = 100
	DefaultStaleThreshold             = 30 * time.Minute
)

// Config bounds the store's memory and defines the staleness window.
type Config struct {
	// MaxMessagesPerConversation caps each thread's message list; oldest
	// messages are dropped first.
	MaxMessagesPerConversation int

	// MaxConversations caps the total thread count; least-recently-active
	// threads are evicted first, regardless of staleness.
	MaxConversations int

	// StaleThreshold is the inactivity window after which a thread stops
	// being a routing candidate.
	StaleThreshold time.Duration

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger

	// Clock is optional and exists for tests; defaults to time.Now.
	Clock func() time.Time
}

func (c *Config) applyDefaults() {
	if c.MaxMessagesPerConversation <= 0 {
		c.MaxMessagesPerConversation = DefaultMaxMessagesPerConversation
	}
	if c.MaxConversations <= 0 {
		c.MaxConversations = DefaultMaxConversations
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// Store is the single source of truth for conversation threads. It holds all
// state in memory for the process lifetime; there is no persistence.
//
// All methods are safe for concurrent use. Threads returned from any method
// are snapshots; mutation goes through Store methods only.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	config  Config
	logger  *slog.Logger
}

// NewStore creates a Store with the given bounds.
func NewStore(config Config) *Store {
	config.applyDefaults()
	return &Store{
		threads: make(map[string]*Thread),
		config:  config,
		logger:  config.Logger.With("component", "conversation_store"),
	}
}

// CreateConversation starts a new thread in the channel, seeded with exactly
// one message. It never fails. If the store then exceeds its thread bound,
// the least-recently-active threads are evicted until within bound.
func (s *Store) CreateConversation(channelID string, seed *models.Message) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Clock()
	thread := &Thread{
		ID:         s.newThreadIDLocked(channelID, now),
		ChannelID:  channelID,
		CreatedAt:  now,
		LastActive: s.activityTime(seed, now),
		Messages:   []*models.Message{seed},
	}
	s.threads[thread.ID] = thread

	s.evictOverflowLocked()

	s.logger.Debug("created conversation",
		"thread_id", thread.ID,
		"channel_id", channelID,
		"total_threads", len(s.threads))

	return thread.clone()
}

// GetConversation returns the thread with the given ID. Pure lookup, no side
// effects.
func (s *Store) GetConversation(id string) (*Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	thread, ok := s.threads[id]
	if !ok {
		return nil, false
	}
	return thread.clone(), true
}

// AddMessage appends a message to the named thread, updates its last-active
// time, and trims the thread to the per-conversation bound. It returns the
// updated thread snapshot, or false when the thread does not exist (the
// append is logged and skipped). The append and the snapshot happen under
// one lock so the returned thread cannot be evicted out from under the
// caller.
func (s *Store) AddMessage(threadID string, msg *models.Message) (*Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[threadID]
	if !ok {
		s.logger.Warn("add message to unknown thread, ignoring",
			"thread_id", threadID,
			"message_id", msg.ID)
		return nil, false
	}

	thread.Messages = append(thread.Messages, msg)
	thread.LastActive = s.activityTime(msg, s.config.Clock())

	if excess := len(thread.Messages) - s.config.MaxMessagesPerConversation; excess > 0 {
		thread.Messages = thread.Messages[excess:]
	}
	return thread.clone(), true
}

// SetTopicSummary overwrites the thread's topic label. Unknown thread IDs
// are logged and ignored, matching AddMessage.
func (s *Store) SetTopicSummary(threadID, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[threadID]
	if !ok {
		s.logger.Warn("set topic on unknown thread, ignoring", "thread_id", threadID)
		return
	}
	thread.TopicSummary = summary
}

// GetActiveConversations returns the channel's threads that pass the
// staleness predicate, ordered by creation time (thread ID as tiebreak) so
// router prompts are deterministic for a given store state.
func (s *Store) GetActiveConversations(channelID string) []*Thread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.config.Clock()
	var active []*Thread
	for _, thread := range s.threads {
		if thread.ChannelID != channelID {
			continue
		}
		if thread.IsStale(s.config.StaleThreshold, now) {
			continue
		}
		active = append(active, thread.clone())
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.Before(active[j].CreatedAt)
		}
		return active[i].ID < active[j].ID
	})

	return active
}

// GetOrCreateConversation appends the message to the channel's most recently
// active thread, or creates a new thread when none is active. This is the
// default threading policy used when no routing decision is available, e.g.
// bookkeeping for bot-authored messages.
func (s *Store) GetOrCreateConversation(channelID string, msg *models.Message) *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Clock()
	var latest *Thread
	for _, thread := range s.threads {
		if thread.ChannelID != channelID || thread.IsStale(s.config.StaleThreshold, now) {
			continue
		}
		if latest == nil || thread.LastActive.After(latest.LastActive) {
			latest = thread
		}
	}

	if latest != nil {
		latest.Messages = append(latest.Messages, msg)
		latest.LastActive = s.activityTime(msg, now)
		if excess := len(latest.Messages) - s.config.MaxMessagesPerConversation; excess > 0 {
			latest.Messages = latest.Messages[excess:]
		}
		return latest.clone()
	}

	// The reuse-or-create decision must stay under one lock; two concurrent
	// calls for the same channel must not both create a thread.
	thread := &Thread{
		ID:         s.newThreadIDLocked(channelID, now),
		ChannelID:  channelID,
		CreatedAt:  now,
		LastActive: s.activityTime(msg, now),
		Messages:   []*models.Message{msg},
	}
	s.threads[thread.ID] = thread
	s.evictOverflowLocked()

	return thread.clone()
}

// Len returns the number of stored threads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

// newThreadIDLocked derives a thread ID from channel and creation time,
// disambiguating same-second creations with a numeric suffix.
func (s *Store) newThreadIDLocked(channelID string, now time.Time) string {
	id := fmt.Sprintf("%s_%d", channelID, now.Unix())
	if _, taken := s.threads[id]; !taken {
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		if _, taken := s.threads[candidate]; !taken {
			return candidate
		}
	}
}

// evictOverflowLocked drops least-recently-active threads until the store is
// within its bound.
func (s *Store) evictOverflowLocked() {
	for len(s.threads) > s.config.MaxConversations {
		var stalest *Thread
		for _, thread := range s.threads {
			if stalest == nil || thread.LastActive.Before(stalest.LastActive) {
				stalest = thread
			}
		}
		delete(s.threads, stalest.ID)
		s.logger.Info("evicted conversation over store bound",
			"thread_id", stalest.ID,
			"channel_id", stalest.ChannelID,
			"last_active", stalest.LastActive)
	}
}

// activityTime picks the time an append represents: the message's own
// timestamp when it carries one, otherwise the current time.
func (s *Store) activityTime(msg *models.Message, now time.Time) time.Time {
	if msg != nil && !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	return now
}
