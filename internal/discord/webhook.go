package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/haasonsaas/ensemble/internal/chat"
)

// webhookNamePrefix marks webhooks this process owns so existing ones can
// be reused across restarts.
const webhookNamePrefix = "ensemble"

// webhookSession is the slice of the Discord API the webhook manager needs.
// *discordgo.Session satisfies it; tests use mocks.
type webhookSession interface {
	ChannelWebhooks(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Webhook, error)
	WebhookCreate(channelID, name, avatar string, options ...discordgo.RequestOption) (*discordgo.Webhook, error)
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type webhookRef struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// WebhookManager sends persona-attributed messages through per-channel
// webhooks, creating them on demand and caching them (optionally persisted
// to a JSON file) so channels do not accumulate duplicates.
type WebhookManager struct {
	session   webhookSession
	cachePath string
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]webhookRef
}

// NewWebhookManager creates a manager. cachePath may be empty for an
// in-memory-only cache; when set, a previously persisted cache is loaded
// best-effort.
func NewWebhookManager(session webhookSession, cachePath string, logger *slog.Logger) *WebhookManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &WebhookManager{
		session:   session,
		cachePath: cachePath,
		logger:    logger.With("component", "webhooks"),
		cache:     make(map[string]webhookRef),
	}
	m.loadCache()
	return m
}

// Send delivers content to the channel attributed to the given display name
// and avatar. Content longer than the Discord limit is chunked; the
// returned message is the acknowledgment of the final chunk. A dead cached
// webhook is invalidated and recreated once before giving up.
func (m *WebhookManager) Send(ctx context.Context, channelID, content, username, avatarURL string) (*discordgo.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, chat.ErrUnavailable("webhooks: context done", err)
	}

	ref, err := m.webhookFor(channelID)
	if err != nil {
		return nil, err
	}

	msg, err := m.execute(ref, content, username, avatarURL)
	if err == nil {
		return msg, nil
	}

	// The cached webhook may have been deleted out from under us.
	m.logger.Warn("webhook execute failed, recreating webhook",
		"channel_id", channelID, "error", err)
	m.invalidate(channelID)

	ref, err = m.webhookFor(channelID)
	if err != nil {
		return nil, err
	}
	msg, err = m.execute(ref, content, username, avatarURL)
	if err != nil {
		return nil, chat.ErrConnection("webhooks: send failed after recreate", err)
	}
	return msg, nil
}

func (m *WebhookManager) execute(ref webhookRef, content, username, avatarURL string) (*discordgo.Message, error) {
	chunks := SplitMessage(content, MaxMessageLength)
	if len(chunks) == 0 {
		return nil, chat.ErrInvalidInput("webhooks: empty content", nil)
	}

	var last *discordgo.Message
	for i, chunk := range chunks {
		// Only the final chunk needs the acknowledged message back.
		wait := i == len(chunks)-1
		msg, err := m.session.WebhookExecute(ref.ID, ref.Token, wait, &discordgo.WebhookParams{
			Content:   chunk,
			Username:  username,
			AvatarURL: avatarURL,
		})
		if err != nil {
			return nil, err
		}
		if wait {
			last = msg
		}
	}
	return last, nil
}

// webhookFor returns the channel's webhook, from cache, by adopting an
// existing one of ours, or by creating one.
func (m *WebhookManager) webhookFor(channelID string) (webhookRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ref, ok := m.cache[channelID]; ok {
		return ref, nil
	}

	existing, err := m.session.ChannelWebhooks(channelID)
	if err == nil {
		for _, hook := range existing {
			if strings.HasPrefix(hook.Name, webhookNamePrefix) && hook.Token != "" {
				ref := webhookRef{ID: hook.ID, Token: hook.Token}
				m.cache[channelID] = ref
				m.saveCacheLocked()
				return ref, nil
			}
		}
	}

	name := fmt.Sprintf("%s-%s", webhookNamePrefix, uuid.NewString()[:8])
	hook, err := m.session.WebhookCreate(channelID, name, "")
	if err != nil {
		return webhookRef{}, chat.ErrConnection("webhooks: create failed", err)
	}

	ref := webhookRef{ID: hook.ID, Token: hook.Token}
	m.cache[channelID] = ref
	m.saveCacheLocked()
	m.logger.Info("created channel webhook", "channel_id", channelID, "webhook_id", hook.ID)
	return ref, nil
}

func (m *WebhookManager) invalidate(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, channelID)
	m.saveCacheLocked()
}

func (m *WebhookManager) loadCache() {
	if m.cachePath == "" {
		return
	}
	data, err := os.ReadFile(m.cachePath)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &m.cache); err != nil {
		m.logger.Warn("discarding unreadable webhook cache", "path", m.cachePath, "error", err)
		m.cache = make(map[string]webhookRef)
	}
}

func (m *WebhookManager) saveCacheLocked() {
	if m.cachePath == "" {
		return
	}
	data, err := json.MarshalIndent(m.cache, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(m.cachePath, data, 0o600); err != nil {
		m.logger.Warn("failed to persist webhook cache", "path", m.cachePath, "error", err)
	}
}
