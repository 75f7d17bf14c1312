package personas

import (
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/ensemble/pkg/models"
)

func TestFormatContextMessagesEmpty(t *testing.T) {
	if got := FormatContextMessages(nil); got != "No prior context available." {
		t.Errorf("FormatContextMessages(nil) = %q", got)
	}
}

func TestFormatContextMessagesTranscript(t *testing.T) {
	ts := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	messages := []*models.Message{
		{AuthorName: "alice", Content: "deploy is failing", Timestamp: ts},
		{AuthorName: "ensemble", PersonaName: "SreBot", IsBot: true, Content: "looking into it", Timestamp: ts.Add(time.Minute)},
		{AuthorName: "bob", Content: "logs attached", Timestamp: ts.Add(2 * time.Minute), ReplyToID: "1", HasAttachments: true, AttachmentTypes: []string{"text/plain"}},
	}

	got := FormatContextMessages(messages)

	if !strings.Contains(got, "[2025-06-01 14:30] alice: deploy is failing") {
		t.Errorf("missing plain line in:\n%s", got)
	}
	if !strings.Contains(got, "ensemble [SreBot]: looking into it") {
		t.Errorf("missing persona attribution in:\n%s", got)
	}
	if !strings.Contains(got, "(reply, attached: text/plain)") {
		t.Errorf("missing hints in:\n%s", got)
	}
	if lines := strings.Split(got, "\n"); len(lines) != 3 {
		t.Errorf("lines = %d, want 3", len(lines))
	}
}

func TestBuildEnhancedQuerySections(t *testing.T) {
	context := []*models.Message{{AuthorName: "alice", Content: "prior", Timestamp: time.Now()}}
	got := BuildEnhancedQuery("what now?", context, "user asked a followup", SelectionRouter)

	for _, want := range []string{
		"<router_reasoning>",
		"user asked a followup",
		"Selection type: router",
		"<conversation_context>",
		"prior",
		"<current_message>",
		"what now?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	// Ordering: reasoning, then context, then current message.
	ri := strings.Index(got, "<router_reasoning>")
	ci := strings.Index(got, "<conversation_context>")
	mi := strings.Index(got, "<current_message>")
	if !(ri < ci && ci < mi) {
		t.Errorf("section order wrong: %d %d %d", ri, ci, mi)
	}
}

func TestBuildEnhancedQueryMinimal(t *testing.T) {
	got := BuildEnhancedQuery("hello", nil, "", SelectionFallback)

	if strings.Contains(got, "<router_reasoning>") {
		t.Error("reasoning section present without reasoning")
	}
	if strings.Contains(got, "<conversation_context>") {
		t.Error("context section present without context")
	}
	if !strings.Contains(got, "<current_message>\nhello") {
		t.Error("current message missing")
	}
	if !strings.Contains(got, "Respond to the current message.") {
		t.Errorf("closing instruction wrong:\n%s", got)
	}
}
