package personas

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/ensemble/internal/chat"
	"github.com/haasonsaas/ensemble/internal/kb"
	"github.com/haasonsaas/ensemble/internal/llm"
)

// defaultSystemPrompt serves the personaless fallback responder.
const defaultSystemPrompt = `You are a helpful AI assistant on a team chat server.
Answer questions based on the provided knowledge base when one is available.
Keep responses concise and conversational.`

// Responder produces a reply on behalf of a persona. A nil persona selects
// the default, personaless responder. Implementations may fail; the caller
// converts failures into apology messages.
type Responder interface {
	Respond(ctx context.Context, persona *Persona, prompt string) (string, error)
}

// LLMResponder implements Responder over an llm.Provider, grounding each
// persona in its knowledge-base file.
type LLMResponder struct {
	provider  llm.Provider
	loader    *kb.Loader
	model     string
	defaultKB string
	logger    *slog.Logger
}

// LLMResponderConfig configures an LLMResponder.
type LLMResponderConfig struct {
	Provider llm.Provider
	Loader   *kb.Loader

	// Model overrides the provider default when non-empty.
	Model string

	// DefaultKnowledgeBase backs the personaless responder; optional.
	DefaultKnowledgeBase string

	Logger *slog.Logger
}

// NewLLMResponder creates a responder from the given configuration.
func NewLLMResponder(config LLMResponderConfig) (*LLMResponder, error) {
	if config.Provider == nil {
		return nil, chat.ErrConfig("responder: provider is required", nil)
	}
	if config.Loader == nil {
		config.Loader = kb.NewLoader(config.Logger)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &LLMResponder{
		provider:  config.Provider,
		loader:    config.Loader,
		model:     config.Model,
		defaultKB: config.DefaultKnowledgeBase,
		logger:    config.Logger.With("component", "responder"),
	}, nil
}

// Respond runs one completion as the given persona. Knowledge-base content
// is folded into the system prompt; a missing knowledge base degrades to
// answering without one rather than failing the reply.
func (r *LLMResponder) Respond(ctx context.Context, persona *Persona, prompt string) (string, error) {
	system := defaultSystemPrompt
	kbPath := r.defaultKB
	name := "default"

	if persona != nil {
		system = persona.SystemPrompt
		kbPath = persona.KnowledgeBasePath
		name = persona.Name
	}

	if kbPath != "" {
		content, err := r.loader.Load(kbPath)
		if err != nil {
			r.logger.Warn("knowledge base unavailable, responding without it",
				"persona", name, "path", kbPath, "error", err)
		} else {
			system += "\n\n<knowledge_base>\n" + content + "\n</knowledge_base>"
		}
	}

	text, err := r.provider.Complete(ctx, &llm.Request{
		Model:     r.model,
		System:    system,
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", chat.ErrUpstream("responder: completion failed", err)
	}

	return text, nil
}
