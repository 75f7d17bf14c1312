package router

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/pkg/models"
)

// ContextResolutionError reports message IDs a strict extraction could not
// resolve against the thread. It is used only by evaluation and test
// harnesses, never on the live-serving path.
type ContextResolutionError struct {
	ThreadID   string
	MissingIDs []string
}

func (e *ContextResolutionError) Error() string {
	return fmt.Sprintf("thread %s: %d context message IDs not found: %s",
		e.ThreadID, len(e.MissingIDs), strings.Join(e.MissingIDs, ", "))
}

// NormalizeMessageIDs filters sentinel junk out of the decision-maker's
// relevant_message_ids. The model sometimes returns "null" or "none" as
// strings when it found no relevant context, and sometimes echoes IDs back
// with a leading display "#". Order of surviving IDs is preserved.
//
//	NormalizeMessageIDs([]string{"123", "null", "#456", "none", ""})
//	// -> []string{"123", "456"}
func NormalizeMessageIDs(ids []string) []string {
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		switch strings.ToLower(id) {
		case "null", "none":
			continue
		}
		clean := strings.TrimLeft(id, "#")
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	return normalized
}

// ContextMessagesByIDs resolves IDs against the thread. Found messages come
// back in the thread's own storage order, not the order requested; missing
// IDs come back in the order they were requested.
func ContextMessagesByIDs(thread *conversation.Thread, ids []string) (found []*models.Message, missing []string) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	foundIDs := make(map[string]struct{}, len(ids))
	for _, msg := range thread.Messages {
		if _, ok := wanted[msg.ID]; ok {
			found = append(found, msg)
			foundIDs[msg.ID] = struct{}{}
		}
	}

	for _, id := range ids {
		if _, ok := foundIDs[id]; !ok {
			missing = append(missing, id)
		}
	}

	return found, missing
}

// ExtractContextMessages normalizes the decision's relevant message IDs and
// resolves them against the thread.
//
// In lenient mode (strict=false) it never fails: unresolvable IDs are
// dropped and whatever subset resolved is returned, possibly empty. In
// strict mode any unresolved ID yields a *ContextResolutionError carrying
// the missing IDs.
func ExtractContextMessages(thread *conversation.Thread, decision *Decision, strict bool) ([]*models.Message, error) {
	ids := NormalizeMessageIDs(decision.RelevantMessageIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	found, missing := ContextMessagesByIDs(thread, ids)
	if len(missing) > 0 && strict {
		return nil, &ContextResolutionError{ThreadID: thread.ID, MissingIDs: missing}
	}

	return found, nil
}
