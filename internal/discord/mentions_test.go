package discord

import (
	"testing"

	"github.com/haasonsaas/ensemble/internal/personas"
)

func testDirectory() *personas.Directory {
	return personas.NewDirectory([]personas.Persona{
		{Name: "JohnPM", DisplayName: "John (PM)", Role: "product manager"},
		{Name: "SreBot", DisplayName: "SRE", Role: "site reliability"},
	})
}

func TestStripMentionTokens(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<@123> hello", "hello"},
		{"<@!123> hello <@&456> world", "hello world"},
		{"see <#789> for details", "see for details"},
		{"no mentions here", "no mentions here"},
		{"<@123>", ""},
	}
	for _, tt := range tests {
		if got := StripMentionTokens(tt.in); got != tt.want {
			t.Errorf("StripMentionTokens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectPersonaMention(t *testing.T) {
	dir := testDirectory()

	tests := []struct {
		name        string
		in          string
		wantPersona string
		wantClean   string
	}{
		{"exact", "@JohnPM what's the roadmap?", "JohnPM", "what's the roadmap?"},
		{"case insensitive", "@johnpm status?", "JohnPM", "status?"},
		{"mid message", "hey @SreBot is prod ok?", "SreBot", "hey is prod ok?"},
		{"unknown name", "@Nobody hello", "", "@Nobody hello"},
		{"no mention", "plain message", "", "plain message"},
		{"unknown then known", "@Nobody ask @JohnPM", "JohnPM", "@Nobody ask"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persona, clean := DetectPersonaMention(tt.in, dir)
			if persona != tt.wantPersona {
				t.Errorf("persona = %q, want %q", persona, tt.wantPersona)
			}
			if clean != tt.wantClean {
				t.Errorf("clean = %q, want %q", clean, tt.wantClean)
			}
		})
	}
}

func TestCleanQuery(t *testing.T) {
	dir := testDirectory()

	persona, query := CleanQuery("<@111> @JohnPM when do we ship?", dir)
	if persona != "JohnPM" {
		t.Errorf("persona = %q, want JohnPM", persona)
	}
	if query != "when do we ship?" {
		t.Errorf("query = %q, want %q", query, "when do we ship?")
	}

	// A bare mention leaves an empty query.
	persona, query = CleanQuery("<@111>", dir)
	if persona != "" || query != "" {
		t.Errorf("bare mention = (%q, %q), want empty", persona, query)
	}
}
