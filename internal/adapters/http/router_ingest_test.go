package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardmere/crmparse/internal/config"
	"github.com/ardmere/crmparse/internal/core/domain"
)

func TestIngestGmailAcceptsMessage(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload, _ := json.Marshal(map[string]any{
		"subject": "Renewal discussion",
		"from":    "dana@acme.com",
		"to":      []string{"sales@ardmere.com"},
		"body":    "Let's talk pricing next week.",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/events/gmail", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var event domain.InteractionEvent
	if err := json.NewDecoder(res.Body).Decode(&event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.ID != "evt-gmail" {
		t.Fatalf("expected queued event id, got %q", event.ID)
	}
	if event.Channel != domain.ChannelEmail {
		t.Fatalf("expected email channel, got %q", event.Channel)
	}
}

func TestIngestZoomAcceptsMeeting(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload, _ := json.Marshal(map[string]any{
		"meeting_id": "zm-55",
		"transcript": "Speaker 1: welcome everyone.",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/events/zoom", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
}

func TestIngestWhatsAppAcceptsVoiceNote(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload, _ := json.Marshal(map[string]any{
		"message_id": "wa-7",
		"audio_uri":  "voice/wa-7.ogg",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/events/whatsapp", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
}

func TestIngestCalendarAcceptsEvent(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload, _ := json.Marshal(map[string]any{
		"event_id":    "cal-3",
		"title":       "Acme QBR",
		"description": "Quarterly business review",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/events/calendar", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
}

func TestIngestWebhookKeepsEventID(t *testing.T) {
	handler := newTestHandler(config.Config{})

	payload, _ := json.Marshal(map[string]any{
		"id":       "ext-91",
		"raw_text": "Inbound lead from the website form",
		"channel":  "webhook",
		"source":   "landing-page",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}

	var event domain.InteractionEvent
	if err := json.NewDecoder(res.Body).Decode(&event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.ID != "ext-91" {
		t.Fatalf("expected caller-supplied id, got %q", event.ID)
	}
}

func TestIngestGmailMapsInvalidInputTo400(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		fakeIngestor{err: domain.WrapError(domain.ErrInvalidInput, "ingest gmail", errors.New("empty message"))},
		fakePreprocessor{},
		fakeEngine{},
		fakeProcessor{},
		fakeReader{},
		&fakeAgent{},
		fakeReports{},
		nil,
	).Handler()

	payload, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/v1/events/gmail", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
