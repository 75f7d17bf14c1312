package router

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/llm"
)

// routerSystemPrompt fixes the decision-maker's output contract. The task
// body itself is rendered per message by BuildPrompt.
const routerSystemPrompt = `You are a conversation router for a multi-persona chat bot.
Given the current message and the channel's active conversations, decide:
whether the bot should respond, which conversation the message belongs to,
which persona fits best, and which prior messages are relevant context.

Respond with a single JSON object and nothing else:
{
  "should_respond": boolean,
  "conversation_id": string or null (null starts a new conversation),
  "suggested_persona": string or null (must be one of the available personas),
  "relevant_message_ids": array of message ID strings,
  "confidence": number between 0.0 and 1.0,
  "reasoning": string,
  "topic_summary": string
}`

// LLMDecisionMaker implements DecisionMaker by asking a language model to
// fill the Decision contract.
type LLMDecisionMaker struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

// NewLLMDecisionMaker creates a decision maker on top of the given provider.
// model may be empty to use the provider's default.
func NewLLMDecisionMaker(provider llm.Provider, model string, logger *slog.Logger) *LLMDecisionMaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMDecisionMaker{
		provider: provider,
		model:    model,
		logger:   logger.With("component", "router"),
	}
}

// Decide renders the routing prompt, invokes the model once (no retries; a
// failure is the caller's fallback trigger), and parses the structured
// decision.
func (d *LLMDecisionMaker) Decide(ctx context.Context, req *Request) (*Decision, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	prompt := BuildPrompt(req.CurrentMessage, req.ActiveConversations, now)
	system := routerSystemPrompt + "\n\nAvailable personas:\n" + formatPersonas(req.AvailablePersonas)
	if req.ExplicitPersona != "" {
		system += fmt.Sprintf("\nThe user explicitly addressed persona %q.", req.ExplicitPersona)
	}
	if req.IsMentioned {
		system += "\nThe bot itself was mentioned in this message."
	}

	start := time.Now()
	raw, err := d.provider.Complete(ctx, &llm.Request{
		Model:     d.model,
		System:    system,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 1024,
		// Routing wants greedy decoding. A literal 0 is indistinguishable
		// from "unset" and gets dropped before reaching the API, so the
		// smallest positive float stands in for it.
		Temperature: math.SmallestNonzeroFloat32,
		JSONOnly:    true,
	})
	if err != nil {
		return nil, chat.ErrUpstream("router: decision call failed", err)
	}

	decision, err := ParseDecision([]byte(ExtractJSON(raw)))
	if err != nil {
		return nil, chat.ErrInvalidInput("router: malformed decision", err)
	}

	d.logger.Debug("routing decision",
		"should_respond", decision.ShouldRespond,
		"conversation_id", decision.ConversationID,
		"suggested_persona", decision.SuggestedPersona,
		"context_ids", len(decision.RelevantMessageIDs),
		"confidence", decision.Confidence,
		"latency_ms", time.Since(start).Milliseconds())

	return decision, nil
}

func formatPersonas(personas []PersonaInfo) string {
	if len(personas) == 0 {
		return "(none configured)"
	}
	var b strings.Builder
	for _, p := range personas {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Role)
	}
	return b.String()
}
