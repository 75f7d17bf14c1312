// Package router implements the conversation routing engine: the structured
// decision contract returned by the model, the prompt the model is asked to
// answer, and the validation and context extraction applied to its output.
package router

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/pkg/models"
)

// PersonaInfo is the slice of persona metadata the router needs: name and
// role, nothing else.
type PersonaInfo struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Decision is the structured output contract of the routing decision-maker.
//
// ConversationID and SuggestedPersona are empty when the model returned null;
// RelevantMessageIDs may carry sentinel junk ("null", "#123") and must go
// through NormalizeMessageIDs before use.
type Decision struct {
	ShouldRespond      bool     `json:"should_respond"`
	ConversationID     string   `json:"conversation_id"`
	SuggestedPersona   string   `json:"suggested_persona"`
	RelevantMessageIDs []string `json:"relevant_message_ids"`
	Confidence         float64  `json:"confidence"`
	Reasoning          string   `json:"reasoning"`
	TopicSummary       string   `json:"topic_summary"`
}

// Request carries everything the decision-maker may consider for one
// incoming message.
type Request struct {
	CurrentMessage      *models.Message
	ActiveConversations []*conversation.Thread
	AvailablePersonas   []PersonaInfo

	// ExplicitPersona is set when the user addressed a persona by name.
	ExplicitPersona string

	// IsMentioned is true when the bot itself was addressed by user or
	// role mention.
	IsMentioned bool

	Now time.Time
}

// DecisionMaker produces a routing decision for an incoming message. The
// production implementation calls a language model; tests use deterministic
// stubs. Implementations may be slow and may fail; callers perform no
// retries.
type DecisionMaker interface {
	Decide(ctx context.Context, req *Request) (*Decision, error)
}

// decisionSchema constrains the raw model output before decoding. Nullable
// fields accept null explicitly; unknown fields are tolerated since models
// occasionally add commentary keys.
const decisionSchema = `{
  "type": "object",
  "required": ["should_respond", "relevant_message_ids", "confidence", "reasoning", "topic_summary"],
  "properties": {
    "should_respond": { "type": "boolean" },
    "conversation_id": { "type": ["string", "null"] },
    "suggested_persona": { "type": ["string", "null"] },
    "relevant_message_ids": {
      "type": "array",
      "items": { "type": "string" }
    },
    "confidence": { "type": "number" },
    "reasoning": { "type": "string" },
    "topic_summary": { "type": "string" }
  },
  "additionalProperties": true
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func decisionJSONSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString("router_decision", decisionSchema)
	})
	return compiledSchema, schemaErr
}

// ParseDecision validates raw model output against the decision schema and
// decodes it. Confidence is clamped to [0, 1].
func ParseDecision(raw []byte) (*Decision, error) {
	schema, err := decisionJSONSchema()
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if err := schema.Validate(payload); err != nil {
		return nil, err
	}

	var decision Decision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return nil, err
	}

	if decision.Confidence < 0 {
		decision.Confidence = 0
	}
	if decision.Confidence > 1 {
		decision.Confidence = 1
	}

	return &decision, nil
}

// ExtractJSON pulls the first JSON object out of a model reply, tolerating
// markdown code fences and prose around the payload.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return trimmed
	}
	return trimmed[start : end+1]
}
