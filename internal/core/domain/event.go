package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelCall      Channel = "call"
	ChannelMeeting   Channel = "meeting"
	ChannelVoiceNote Channel = "voice_note"
	ChannelWebhook   Channel = "webhook"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelCall, ChannelMeeting, ChannelVoiceNote, ChannelWebhook:
		return true
	default:
		return false
	}
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	default:
		return false
	}
}

// InteractionEvent is an inbound event as received from a source system,
// before preprocessing.
type InteractionEvent struct {
	ID         string         `json:"id,omitempty"`
	RawText    string         `json:"raw_text,omitempty"`
	AudioURI   string         `json:"audio_uri,omitempty"`
	Channel    Channel        `json:"channel"`
	Source     string         `json:"source"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// occurredAtLayouts are tried in order when decoding an event timestamp.
var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes occurred_at leniently: source systems send full
// timestamps, bare dates, or junk. Unparseable values decode to nil so the
// preprocessor applies its current-time default instead of failing the
// event.
func (e *InteractionEvent) UnmarshalJSON(data []byte) error {
	type alias InteractionEvent
	aux := struct {
		OccurredAt *string `json:"occurred_at,omitempty"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.OccurredAt = ParseEventTime(aux.OccurredAt)
	return nil
}

// ParseEventTime parses a date-like string into a UTC timestamp. Returns
// nil when the value is empty or matches no known layout.
func ParseEventTime(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	for _, layout := range occurredAtLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

// ProcessedEvent is an interaction ready for extraction. Preprocessing owns
// transcription and language detection; the extraction engine reads only
// raw text, transcript, channel and metadata. Immutable once handed over.
type ProcessedEvent struct {
	RawText         string         `json:"raw_text"`
	Transcript      string         `json:"transcript,omitempty"`
	AudioURI        string         `json:"audio_uri,omitempty"`
	Channel         Channel        `json:"channel"`
	Source          string         `json:"source"`
	OccurredAt      time.Time      `json:"occurred_at"`
	Language        string         `json:"language,omitempty"`
	DiarizationTags []string       `json:"diarization_tags,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// InputText returns the text the extraction engine should work from. The
// transcript takes priority over raw text when both exist.
func (e ProcessedEvent) InputText() string {
	if e.Transcript != "" {
		return e.Transcript
	}
	return e.RawText
}
