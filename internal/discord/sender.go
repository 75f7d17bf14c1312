package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/orchestrator"
	"github.com/haasonsaas/ensemble/pkg/models"
)

// messageSession is the slice of the Discord API the plain-message sender
// needs.
type messageSession interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender implements orchestrator.Sender on Discord: persona-attributed
// replies go through channel webhooks (display name + avatar); plain
// replies go through the bot account as a threaded reply.
type Sender struct {
	session  messageSession
	webhooks *WebhookManager
	logger   *slog.Logger
}

// NewSender creates a Sender.
func NewSender(session messageSession, webhooks *WebhookManager, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		session:  session,
		webhooks: webhooks,
		logger:   logger.With("component", "sender"),
	}
}

// Send delivers the request and returns the platform acknowledgment of the
// final chunk as a Message.
func (s *Sender) Send(ctx context.Context, req *orchestrator.SendRequest) (*models.Message, error) {
	if req.Content == "" {
		return nil, chat.ErrInvalidInput("sender: empty content", nil)
	}

	var (
		ack *discordgo.Message
		err error
	)
	if req.Persona != nil && s.webhooks != nil {
		ack, err = s.webhooks.Send(ctx, req.ChannelID, req.Content,
			req.Persona.DisplayName, req.Persona.AvatarURL)
	} else {
		ack, err = s.sendPlain(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	msg := ConvertMessage(ack)
	if msg == nil {
		// Webhook executions without wait return no body; synthesize the
		// minimum the store needs.
		msg = &models.Message{ChannelID: req.ChannelID, Content: req.Content}
	}
	msg.IsBot = true
	if req.Persona != nil {
		msg.PersonaName = req.Persona.Name
	}
	return msg, nil
}

func (s *Sender) sendPlain(ctx context.Context, req *orchestrator.SendRequest) (*discordgo.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, chat.ErrUnavailable("sender: context done", err)
	}

	chunks := SplitMessage(req.Content, MaxMessageLength)
	var last *discordgo.Message
	for i, chunk := range chunks {
		data := &discordgo.MessageSend{Content: chunk}
		// Only the first chunk replies to the triggering message.
		if i == 0 && req.ReplyToID != "" {
			data.Reference = &discordgo.MessageReference{
				MessageID: req.ReplyToID,
				ChannelID: req.ChannelID,
			}
		}
		msg, err := s.session.ChannelMessageSendComplex(req.ChannelID, data)
		if err != nil {
			return nil, chat.ErrConnection("sender: message send failed", err)
		}
		last = msg
	}
	return last, nil
}
