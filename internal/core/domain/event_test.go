package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestInteractionEventDecodesTimestamp(t *testing.T) {
	var event InteractionEvent
	payload := `{"raw_text":"note","channel":"email","source":"gmail","occurred_at":"2025-11-12T10:30:00Z"}`
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2025, 11, 12, 10, 30, 0, 0, time.UTC)
	if event.OccurredAt == nil || !event.OccurredAt.Equal(want) {
		t.Fatalf("unexpected occurred_at %v", event.OccurredAt)
	}
	if event.Channel != ChannelEmail || event.Source != "gmail" {
		t.Fatalf("other fields must decode unchanged, got %+v", event)
	}
}

func TestInteractionEventDecodesBareDate(t *testing.T) {
	var event InteractionEvent
	payload := `{"channel":"webhook","source":"crm","occurred_at":"2025-11-12"}`
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)
	if event.OccurredAt == nil || !event.OccurredAt.Equal(want) {
		t.Fatalf("unexpected occurred_at %v", event.OccurredAt)
	}
}

func TestInteractionEventToleratesUnparseableTime(t *testing.T) {
	for _, raw := range []string{`"soon"`, `""`} {
		var event InteractionEvent
		payload := `{"channel":"webhook","source":"crm","occurred_at":` + raw + `}`
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("unparseable occurred_at %s must not fail the decode: %v", raw, err)
		}
		if event.OccurredAt != nil {
			t.Fatalf("unparseable occurred_at %s must decode to nil, got %v", raw, event.OccurredAt)
		}
	}
}

func TestParseEventTime(t *testing.T) {
	spaced := "2025-11-12 09:15:00"
	parsed := ParseEventTime(&spaced)
	if parsed == nil || !parsed.Equal(time.Date(2025, 11, 12, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected parse of %q: %v", spaced, parsed)
	}
	if ParseEventTime(nil) != nil {
		t.Fatalf("nil input must parse to nil")
	}
}
