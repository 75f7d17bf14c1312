package router

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/pkg/models"
)

// Prompt rendering limits.
const (
	// maxRecentForRouting caps how many messages of each active thread the
	// decision-maker sees.
	maxRecentForRouting = 20

	// previewLen truncates message content in thread listings.
	previewLen = 150
)

// BuildPrompt renders the routing task for the decision-maker: the current
// message with its metadata, every active conversation in the channel with
// its recent history, and the fixed task footer.
//
// Showing multiple candidate threads with their recent history, rather than
// one flat history, is what lets the decision-maker tell topic continuity
// from a topic switch.
func BuildPrompt(current *models.Message, active []*conversation.Thread, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Task: Route this message to a conversation and select relevant context\n\n")

	b.WriteString("## Current Message\n")
	fmt.Fprintf(&b, "From: %s\n", current.AuthorName)
	fmt.Fprintf(&b, "Content: %s\n", current.Content)
	fmt.Fprintf(&b, "Message time: %s\n", current.Timestamp.Format("15:04:05"))
	fmt.Fprintf(&b, "Current time: %s\n", now.Format("15:04:05"))
	fmt.Fprintf(&b, "Time since message: %.1fs\n", now.Sub(current.Timestamp).Seconds())

	if current.ReplyToID != "" {
		fmt.Fprintf(&b, "Replying to: message ID %s\n", current.ReplyToID)
	}
	if current.HasAttachments {
		types := current.AttachmentTypes
		if len(types) > 3 {
			types = types[:3]
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(types, ", "))
	}
	if current.HasEmbeds {
		b.WriteString("Has embedded content\n")
	}

	b.WriteString("\n## Active Conversations in Channel\n")

	if len(active) == 0 {
		b.WriteString("No active conversations. This will start a new conversation (conversation_id=null).\n")
	} else {
		for _, thread := range active {
			recent := thread.RecentMessages(maxRecentForRouting)

			fmt.Fprintf(&b, "### Conversation: %s\n", thread.ID)
			if thread.TopicSummary != "" {
				fmt.Fprintf(&b, "Topic: %s\n", thread.TopicSummary)
			}
			fmt.Fprintf(&b, "Last active: %s\n", thread.LastActive.Format("15:04"))
			fmt.Fprintf(&b, "Recent %d messages (for context selection):\n", len(recent))

			for _, msg := range recent {
				// The current message never appears in any thread's
				// displayed history.
				if msg.ID == current.ID {
					continue
				}
				b.WriteString(formatThreadMessage(msg))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Your Task\n")
	b.WriteString("1. Determine which conversation this message belongs to (return conversation_id) OR start new (return null)\n")
	b.WriteString("2. Suggest which persona should respond (or null if none fit)\n")
	b.WriteString("3. Select message IDs that provide relevant context from that conversation (or empty list if none needed)\n")
	b.WriteString("4. Provide reasoning for your decisions\n")

	return b.String()
}

func formatThreadMessage(msg *models.Message) string {
	// Truncate on rune boundaries; a byte slice can split a multi-byte
	// character and feed invalid UTF-8 to the model.
	preview := msg.Content
	if utf8.RuneCountInString(preview) > previewLen {
		preview = string([]rune(preview)[:previewLen])
	}

	author := msg.AuthorName
	if msg.IsBot && msg.PersonaName != "" {
		author = msg.PersonaName + " (bot)"
	}

	var hints []string
	if msg.ReplyToID != "" {
		hints = append(hints, "reply")
	}
	if msg.HasAttachments {
		hints = append(hints, fmt.Sprintf("%d files", len(msg.AttachmentTypes)))
	}

	hintStr := ""
	if len(hints) > 0 {
		hintStr = " [" + strings.Join(hints, ", ") + "]"
	}

	return fmt.Sprintf("  - ID:%s | %s: %s%s\n", msg.ID, author, preview, hintStr)
}
