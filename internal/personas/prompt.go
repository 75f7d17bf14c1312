package personas

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/ensemble/pkg/models"
)

// SelectionType labels how a persona came to answer, so the responder model
// knows whether it was chosen by the router, addressed directly, or is the
// fallback.
type SelectionType string

const (
	// SelectionRouter: the routing decision suggested this persona.
	SelectionRouter SelectionType = "router"

	// SelectionMention: the user addressed the persona by name.
	SelectionMention SelectionType = "mention"

	// SelectionFallback: no persona matched; the default responder answers.
	SelectionFallback SelectionType = "fallback"
)

// FormatContextMessages renders router-selected context messages as a
// transcript for the responder model.
func FormatContextMessages(messages []*models.Message) string {
	if len(messages) == 0 {
		return "No prior context available."
	}

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n")
		}

		author := msg.AuthorName
		if msg.IsBot && msg.PersonaName != "" {
			author = fmt.Sprintf("%s [%s]", msg.AuthorName, msg.PersonaName)
		}

		var hints []string
		if msg.ReplyToID != "" {
			hints = append(hints, "reply")
		}
		if msg.HasAttachments {
			types := msg.AttachmentTypes
			if len(types) > 2 {
				types = types[:2]
			}
			hints = append(hints, "attached: "+strings.Join(types, ", "))
		}
		hintStr := ""
		if len(hints) > 0 {
			hintStr = " (" + strings.Join(hints, ", ") + ")"
		}

		fmt.Fprintf(&b, "[%s] %s: %s%s",
			msg.Timestamp.Format("2006-01-02 15:04"), author, msg.Content, hintStr)
	}

	return b.String()
}

// BuildEnhancedQuery assembles the prompt handed to a persona responder:
// the router's reasoning (when available), the selected conversation
// context, and the cleaned user query, followed by a closing instruction.
func BuildEnhancedQuery(query string, context []*models.Message, reasoning string, selection SelectionType) string {
	var b strings.Builder

	if reasoning != "" {
		b.WriteString("<router_reasoning>\n")
		fmt.Fprintf(&b, "You were selected by the conversation router because: %s\n", reasoning)
		fmt.Fprintf(&b, "Selection type: %s\n", selection)
		b.WriteString("</router_reasoning>\n\n")
	}

	if len(context) > 0 {
		b.WriteString("<conversation_context>\n")
		b.WriteString(FormatContextMessages(context))
		b.WriteString("\n</conversation_context>\n\n")
	}

	b.WriteString("<current_message>\n")
	b.WriteString(query)
	b.WriteString("\n</current_message>\n\n")

	instruction := "Respond to the current message"
	if reasoning != "" {
		instruction += ", keeping in mind the router's reasoning for selecting you"
	}
	if len(context) > 0 {
		instruction += ", using the conversation context to inform your response"
	}
	instruction += "."
	b.WriteString(instruction)

	return b.String()
}
