package router

import (
	"errors"
	"reflect"
	"testing"

	"github.com/haasonsaas/ensemble/internal/conversation"
	"github.com/haasonsaas/ensemble/pkg/models"
)

func threadWithIDs(ids ...string) *conversation.Thread {
	th := &conversation.Thread{ID: "chan_1"}
	for _, id := range ids {
		th.Messages = append(th.Messages, &models.Message{ID: id})
	}
	return th
}

func TestNormalizeMessageIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"sentinels and prefix", []string{"123", "null", "#456", "none", ""}, []string{"123", "456"}},
		{"case insensitive sentinels", []string{"NULL", "None", "nOnE", "7"}, []string{"7"}},
		{"bare hash", []string{"#"}, []string{}},
		{"order preserved", []string{"3", "1", "2"}, []string{"3", "1", "2"}},
		{"empty input", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMessageIDs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeMessageIDs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestContextMessagesByIDsOrdering(t *testing.T) {
	th := threadWithIDs("1")

	found, missing := ContextMessagesByIDs(th, []string{"1", "2", "3"})
	if len(found) != 1 || found[0].ID != "1" {
		t.Errorf("found = %v, want exactly message 1", found)
	}
	if !reflect.DeepEqual(missing, []string{"2", "3"}) {
		t.Errorf("missing = %v, want [2 3] in requested order", missing)
	}
}

func TestContextMessagesByIDsStorageOrder(t *testing.T) {
	th := threadWithIDs("a", "b", "c")

	// Requested out of order; results come back in storage order.
	found, missing := ContextMessagesByIDs(th, []string{"c", "a"})
	if len(missing) != 0 {
		t.Fatalf("missing = %v, want none", missing)
	}
	if len(found) != 2 || found[0].ID != "a" || found[1].ID != "c" {
		t.Errorf("found order = %v, want storage order [a c]", found)
	}
}

func TestExtractContextMessagesLenientNeverFails(t *testing.T) {
	th := threadWithIDs("1")

	tests := []struct {
		name      string
		ids       []string
		wantCount int
	}{
		{"all resolve", []string{"1"}, 1},
		{"partial", []string{"1", "2"}, 1},
		{"all invalid", []string{"null", "none", "", "#"}, 0},
		{"all missing", []string{"8", "9"}, 0},
		{"none requested", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := &Decision{RelevantMessageIDs: tt.ids}
			got, err := ExtractContextMessages(th, decision, false)
			if err != nil {
				t.Fatalf("lenient mode returned error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("len = %d, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestExtractContextMessagesStrict(t *testing.T) {
	th := threadWithIDs("1")

	// All resolve: no error.
	if _, err := ExtractContextMessages(th, &Decision{RelevantMessageIDs: []string{"1"}}, true); err != nil {
		t.Errorf("strict with resolvable ids: %v", err)
	}

	// Any miss fails with the missing ids attached.
	_, err := ExtractContextMessages(th, &Decision{RelevantMessageIDs: []string{"1", "2", "3"}}, true)
	if err == nil {
		t.Fatal("strict with missing ids returned nil error")
	}
	var resErr *ContextResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error type = %T, want *ContextResolutionError", err)
	}
	if !reflect.DeepEqual(resErr.MissingIDs, []string{"2", "3"}) {
		t.Errorf("MissingIDs = %v, want [2 3]", resErr.MissingIDs)
	}
	if resErr.ThreadID != th.ID {
		t.Errorf("ThreadID = %q, want %q", resErr.ThreadID, th.ID)
	}
}
