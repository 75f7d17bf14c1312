package discord

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/ensemble/internal/personas"
)

var (
	// mentionToken matches Discord's raw mention syntax: users (<@id>,
	// <@!id>), roles (<@&id>) and channels (<#id>).
	mentionToken = regexp.MustCompile(`<@[!&]?\d+>|<#\d+>`)

	// personaMention matches a plain-text @Name the user typed for a
	// persona. Discord does not linkify these; they arrive as literal text.
	personaMention = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
)

// StripMentionTokens removes raw Discord mention syntax from content,
// collapsing whitespace left behind.
func StripMentionTokens(content string) string {
	cleaned := mentionToken.ReplaceAllString(content, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// DetectPersonaMention scans content for an @Name naming a configured
// persona. Matching is case-insensitive; the first match wins. It returns
// the persona's canonical name and the content with that mention removed,
// or ("", content) when no configured persona was addressed.
func DetectPersonaMention(content string, directory *personas.Directory) (string, string) {
	for _, match := range personaMention.FindAllStringSubmatchIndex(content, -1) {
		name := content[match[2]:match[3]]
		persona, ok := directory.ByName(name)
		if !ok {
			continue
		}
		cleaned := content[:match[0]] + content[match[1]:]
		return persona.Name, strings.Join(strings.Fields(cleaned), " ")
	}
	return "", content
}

// CleanQuery strips both raw mention tokens and the detected persona
// mention from content, yielding the text the responder should answer.
func CleanQuery(content string, directory *personas.Directory) (explicitPersona, query string) {
	explicitPersona, query = DetectPersonaMention(content, directory)
	query = StripMentionTokens(query)
	return explicitPersona, query
}
