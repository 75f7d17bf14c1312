package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/ensemble/pkg/models"
)

// ConvertMessage normalizes a Discord message into the platform-neutral
// Message model. Returns nil for messages with no author (system events).
func ConvertMessage(m *discordgo.Message) *models.Message {
	if m == nil || m.Author == nil {
		return nil
	}

	msg := &models.Message{
		ID:         m.ID,
		AuthorName: m.Author.Username,
		AuthorID:   m.Author.ID,
		Content:    m.Content,
		Timestamp:  m.Timestamp,
		ChannelID:  m.ChannelID,
		IsBot:      m.Author.Bot,
		HasEmbeds:  len(m.Embeds) > 0,
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if m.MessageReference != nil {
		msg.ReplyToID = m.MessageReference.MessageID
	}

	for _, user := range m.Mentions {
		msg.MentionsUserIDs = append(msg.MentionsUserIDs, user.ID)
	}

	if len(m.Attachments) > 0 {
		msg.HasAttachments = true
		for _, att := range m.Attachments {
			msg.AttachmentTypes = append(msg.AttachmentTypes, att.ContentType)
		}
	}

	return msg
}

// isBotMentioned reports whether the bot was addressed by direct user
// mention or by one of its roles.
func isBotMentioned(m *discordgo.Message, botUserID string, botRoleIDs map[string]struct{}) bool {
	for _, user := range m.Mentions {
		if user.ID == botUserID {
			return true
		}
	}
	for _, roleID := range m.MentionRoles {
		if _, ok := botRoleIDs[roleID]; ok {
			return true
		}
	}
	return false
}
