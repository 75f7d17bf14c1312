package personas

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/ensemble/internal/kb"
	"github.com/haasonsaas/ensemble/internal/llm"
)

type stubProvider struct {
	reply   string
	err     error
	lastReq *llm.Request
}

func (s *stubProvider) Complete(_ context.Context, req *llm.Request) (string, error) {
	s.lastReq = req
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubProvider) Name() string { return "stub" }

func kbFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kb.md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRespondWithPersonaAndKnowledgeBase(t *testing.T) {
	provider := &stubProvider{reply: "the answer"}
	responder, err := NewLLMResponder(LLMResponderConfig{Provider: provider})
	if err != nil {
		t.Fatalf("NewLLMResponder: %v", err)
	}

	persona := &Persona{
		Name:              "JohnPM",
		SystemPrompt:      "You are John, the PM.",
		KnowledgeBasePath: kbFile(t, "Q3 ships in September."),
	}

	got, err := responder.Respond(context.Background(), persona, "when does Q3 ship?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "the answer" {
		t.Errorf("reply = %q", got)
	}

	if !strings.HasPrefix(provider.lastReq.System, "You are John, the PM.") {
		t.Errorf("system prompt = %q", provider.lastReq.System)
	}
	if !strings.Contains(provider.lastReq.System, "Q3 ships in September.") {
		t.Error("knowledge base missing from system prompt")
	}
	if len(provider.lastReq.Messages) != 1 || provider.lastReq.Messages[0].Content != "when does Q3 ship?" {
		t.Errorf("messages = %v", provider.lastReq.Messages)
	}
}

func TestRespondNilPersonaUsesDefaults(t *testing.T) {
	provider := &stubProvider{reply: "generic answer"}
	responder, err := NewLLMResponder(LLMResponderConfig{
		Provider:             provider,
		DefaultKnowledgeBase: kbFile(t, "team handbook contents"),
	})
	if err != nil {
		t.Fatalf("NewLLMResponder: %v", err)
	}

	if _, err := responder.Respond(context.Background(), nil, "hi"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.HasPrefix(provider.lastReq.System, defaultSystemPrompt) {
		t.Error("default system prompt not used")
	}
	if !strings.Contains(provider.lastReq.System, "team handbook contents") {
		t.Error("default knowledge base missing")
	}
}

func TestRespondMissingKnowledgeBaseDegrades(t *testing.T) {
	provider := &stubProvider{reply: "ok"}
	responder, err := NewLLMResponder(LLMResponderConfig{Provider: provider, Loader: kb.NewLoader(nil)})
	if err != nil {
		t.Fatalf("NewLLMResponder: %v", err)
	}

	persona := &Persona{Name: "X", SystemPrompt: "prompt", KnowledgeBasePath: "/nonexistent/kb.md"}
	if _, err := responder.Respond(context.Background(), persona, "q"); err != nil {
		t.Errorf("missing knowledge base should not fail the reply: %v", err)
	}
	if strings.Contains(provider.lastReq.System, "<knowledge_base>") {
		t.Error("knowledge base section present despite unreadable file")
	}
}

func TestRespondProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("backend down")}
	responder, err := NewLLMResponder(LLMResponderConfig{Provider: provider})
	if err != nil {
		t.Fatalf("NewLLMResponder: %v", err)
	}
	if _, err := responder.Respond(context.Background(), nil, "q"); err == nil {
		t.Error("provider failure swallowed")
	}
}

func TestNewLLMResponderRequiresProvider(t *testing.T) {
	if _, err := NewLLMResponder(LLMResponderConfig{}); err == nil {
		t.Error("nil provider accepted")
	}
}
