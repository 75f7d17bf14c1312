package discord

import (
	"strings"
	"unicode"
)

// MaxMessageLength is Discord's per-message character limit.
const MaxMessageLength = 2000

// SplitMessage splits text into pieces that fit within maxLen characters.
// It breaks at natural boundaries in this order:
//  1. Line boundaries (newlines)
//  2. Sentence endings (. ! ?)
//  3. Word boundaries (spaces)
//  4. Hard slice at maxLen when no natural break exists
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxMessageLength
	}
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > maxLen {
		breakIdx := findBreakPoint(remaining, maxLen)
		if breakIdx <= 0 {
			breakIdx = maxLen
		}

		chunk := strings.TrimRightFunc(remaining[:breakIdx], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		remaining = strings.TrimLeftFunc(remaining[breakIdx:], unicode.IsSpace)
	}

	if remaining = strings.TrimSpace(remaining); remaining != "" {
		chunks = append(chunks, remaining)
	}

	return chunks
}

func findBreakPoint(text string, maxLen int) int {
	if len(text) <= maxLen {
		return len(text)
	}

	window := text[:maxLen]

	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1
	}

	for _, ending := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(window, ending); idx > 0 {
			return idx + 1
		}
	}

	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}

	return maxLen
}
