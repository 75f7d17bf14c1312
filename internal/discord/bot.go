// Package discord is the platform glue: gateway connection, message
// normalization, mention detection, webhook delivery and chunking.
package discord

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/orchestrator"
	"github.com/haasonsaas/ensemble/internal/personas"
)

// gatewaySession is the slice of the Discord gateway the bot needs.
// *discordgo.Session satisfies it; tests use mocks.
type gatewaySession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
}

// BotConfig configures the Discord bot.
type BotConfig struct {
	// Token is the bot token from the Discord developer portal (required
	// unless a Session is injected).
	Token string

	// Session is an optional pre-built gateway session, shared with the
	// webhook manager and sender. Created from Token on Start when nil.
	Session *discordgo.Session

	Orchestrator *orchestrator.Orchestrator
	Directory    *personas.Directory
	Logger       *slog.Logger
}

// NewGatewaySession builds a discordgo session with the gateway intents the
// bot needs.
func NewGatewaySession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, chat.ErrConfig("bot: token is required", nil)
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, chat.ErrAuthentication("bot: failed to create session", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	return dg, nil
}

// Bot connects to the Discord gateway and feeds normalized messages into
// the routing orchestrator. Each message is handled on its own goroutine;
// the conversation store serializes state access.
type Bot struct {
	config  BotConfig
	session gatewaySession
	logger  *slog.Logger

	mu         sync.RWMutex
	botUserID  string
	botRoleIDs map[string]struct{}
	started    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBot creates a Bot. The gateway session is created on Start unless one
// was injected for tests via newBotWithSession.
func NewBot(config BotConfig) (*Bot, error) {
	if config.Orchestrator == nil {
		return nil, chat.ErrConfig("bot: orchestrator is required", nil)
	}
	if config.Directory == nil {
		config.Directory = personas.NewDirectory(nil)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	bot := &Bot{
		config:     config,
		logger:     config.Logger.With("component", "bot"),
		botRoleIDs: make(map[string]struct{}),
	}
	if config.Session != nil {
		bot.session = config.Session
	}
	return bot, nil
}

func newBotWithSession(config BotConfig, session gatewaySession) (*Bot, error) {
	bot, err := NewBot(config)
	if err != nil {
		return nil, err
	}
	bot.session = session
	return bot, nil
}

// Start opens the gateway connection and registers event handlers.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return chat.ErrInternal("bot: already started", nil)
	}

	if b.session == nil {
		dg, err := NewGatewaySession(b.config.Token)
		if err != nil {
			return err
		}
		b.session = dg
	}

	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleGuildCreate)
	b.session.AddHandler(b.handleMessageCreate)

	if err := b.session.Open(); err != nil {
		return chat.ErrConnection("bot: failed to connect", err)
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.started = true
	b.logger.Info("discord bot started")
	return nil
}

// Stop cancels in-flight message handling, waits for it bounded by ctx, and
// closes the gateway connection.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("stop timeout, closing with handlers in flight")
	}

	if err := b.session.Close(); err != nil {
		return chat.ErrConnection("bot: failed to close session", err)
	}
	b.started = false
	b.logger.Info("discord bot stopped")
	return nil
}

func (b *Bot) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	b.botUserID = r.User.ID
	b.mu.Unlock()

	b.logger.Info("gateway ready", "user", r.User.Username, "guilds", len(r.Guilds))
}

// handleGuildCreate records the bot's role IDs per guild so role mentions
// count as addressing the bot.
func (b *Bot) handleGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	b.mu.RLock()
	botID := b.botUserID
	b.mu.RUnlock()
	if botID == "" {
		return
	}

	for _, member := range g.Members {
		if member.User == nil || member.User.ID != botID {
			continue
		}
		b.mu.Lock()
		for _, roleID := range member.Roles {
			b.botRoleIDs[roleID] = struct{}{}
		}
		b.mu.Unlock()
		return
	}
}

func (b *Bot) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	// Bot-authored messages (our own webhooks included) are recorded by
	// the orchestrator at send time; re-ingesting them would double-store.
	if m.Author == nil || m.Author.Bot {
		return
	}

	msg := ConvertMessage(m.Message)
	if msg == nil {
		return
	}

	// Guild events rewrite the role set concurrently; copy it under the
	// lock rather than holding a reference past the unlock.
	b.mu.RLock()
	botID := b.botUserID
	roles := make(map[string]struct{}, len(b.botRoleIDs))
	for roleID := range b.botRoleIDs {
		roles[roleID] = struct{}{}
	}
	b.mu.RUnlock()

	mentioned := isBotMentioned(m.Message, botID, roles)
	explicitPersona, query := CleanQuery(msg.Content, b.config.Directory)

	in := &orchestrator.Inbound{
		Message:         msg,
		ExplicitPersona: explicitPersona,
		IsMentioned:     mentioned,
		CleanQuery:      query,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.config.Orchestrator.HandleMessage(b.ctx, in); err != nil {
			b.logger.Error("message handling failed",
				"message_id", msg.ID,
				"channel_id", msg.ChannelID,
				"error", err)
		}
	}()
}
