package router

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/pkg/models"
)

func TestBuildPromptNoActiveConversations(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	current := &models.Message{
		ID:         "10",
		AuthorName: "alice",
		Content:    "what's the release date?",
		Timestamp:  now.Add(-5 * time.Second),
	}

	prompt := BuildPrompt(current, nil, now)

	if !strings.Contains(prompt, "From: alice") {
		t.Error("prompt missing sender")
	}
	if !strings.Contains(prompt, "what's the release date?") {
		t.Error("prompt missing content")
	}
	if !strings.Contains(prompt, "No active conversations") {
		t.Error("prompt missing empty-channel note")
	}
	if !strings.Contains(prompt, "Time since message: 5.0s") {
		t.Error("prompt missing elapsed time")
	}
	if !strings.Contains(prompt, "## Your Task") {
		t.Error("prompt missing task footer")
	}
}

func TestBuildPromptExcludesCurrentMessageFromHistory(t *testing.T) {
	now := time.Now()
	current := &models.Message{ID: "3", AuthorName: "alice", Content: "current", Timestamp: now}
	thread := &conversation.Thread{
		ID:         "chan_100",
		LastActive: now,
		Messages: []*models.Message{
			{ID: "1", AuthorName: "bob", Content: "earlier", Timestamp: now},
			{ID: "3", AuthorName: "alice", Content: "current", Timestamp: now},
		},
	}

	prompt := BuildPrompt(current, []*conversation.Thread{thread}, now)

	if !strings.Contains(prompt, "ID:1") {
		t.Error("prior message missing from history")
	}
	if strings.Contains(prompt, "ID:3") {
		t.Error("current message leaked into thread history")
	}
}

func TestBuildPromptThreadAnnotations(t *testing.T) {
	now := time.Now()
	current := &models.Message{ID: "99", AuthorName: "alice", Content: "q", Timestamp: now}
	thread := &conversation.Thread{
		ID:           "chan_100",
		TopicSummary: "deploy pipeline",
		LastActive:   now,
		Messages: []*models.Message{
			{ID: "1", AuthorName: "ensemble", PersonaName: "JohnPM", IsBot: true, Content: "the pipeline is green", Timestamp: now},
			{ID: "2", AuthorName: "bob", Content: "thanks", ReplyToID: "1", HasAttachments: true, AttachmentTypes: []string{"image/png"}, Timestamp: now},
		},
	}

	prompt := BuildPrompt(current, []*conversation.Thread{thread}, now)

	if !strings.Contains(prompt, "### Conversation: chan_100") {
		t.Error("missing conversation header")
	}
	if !strings.Contains(prompt, "Topic: deploy pipeline") {
		t.Error("missing topic summary")
	}
	if !strings.Contains(prompt, "JohnPM (bot)") {
		t.Error("missing persona bot marker")
	}
	if !strings.Contains(prompt, "[reply, 1 files]") {
		t.Error("missing reply/attachment hints")
	}
}

func TestBuildPromptTruncatesLongContent(t *testing.T) {
	now := time.Now()
	long := strings.Repeat("x", 500)
	current := &models.Message{ID: "99", AuthorName: "alice", Content: "q", Timestamp: now}
	thread := &conversation.Thread{
		ID:         "chan_100",
		LastActive: now,
		Messages:   []*models.Message{{ID: "1", AuthorName: "bob", Content: long, Timestamp: now}},
	}

	prompt := BuildPrompt(current, []*conversation.Thread{thread}, now)
	if strings.Contains(prompt, long) {
		t.Error("thread history content not truncated to preview length")
	}
	if !strings.Contains(prompt, strings.Repeat("x", previewLen)) {
		t.Error("preview missing")
	}
}

func TestBuildPromptTruncatesOnRuneBoundary(t *testing.T) {
	now := time.Now()
	long := strings.Repeat("é", previewLen+50)
	current := &models.Message{ID: "99", AuthorName: "alice", Content: "q", Timestamp: now}
	thread := &conversation.Thread{
		ID:         "chan_100",
		LastActive: now,
		Messages:   []*models.Message{{ID: "1", AuthorName: "bob", Content: long, Timestamp: now}},
	}

	prompt := BuildPrompt(current, []*conversation.Thread{thread}, now)
	if !utf8.ValidString(prompt) {
		t.Error("prompt contains invalid UTF-8")
	}
	if !strings.Contains(prompt, strings.Repeat("é", previewLen)) {
		t.Error("preview missing")
	}
	if strings.Contains(prompt, strings.Repeat("é", previewLen+1)) {
		t.Error("preview not truncated at the rune limit")
	}
}

func TestBuildPromptCapsRecentMessages(t *testing.T) {
	now := time.Now()
	current := &models.Message{ID: "current", AuthorName: "alice", Content: "q", Timestamp: now}
	thread := &conversation.Thread{ID: "chan_100", LastActive: now}
	for i := 0; i < maxRecentForRouting+10; i++ {
		thread.Messages = append(thread.Messages, &models.Message{
			ID: "m" + string(rune('a'+i%26)) + string(rune('0'+i%10)), AuthorName: "bob", Content: "m", Timestamp: now,
		})
	}

	prompt := BuildPrompt(current, []*conversation.Thread{thread}, now)
	if got := strings.Count(prompt, "  - ID:"); got > maxRecentForRouting {
		t.Errorf("history lines = %d, want at most %d", got, maxRecentForRouting)
	}
}
