package domain

import "time"

// Attachment is an inline file shipped with an inbound message. Text is
// pulled out of supported formats during ingestion and appended to the
// event's raw text.
type Attachment struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// GmailMessage is the inbound payload of the gmail ingestion source.
type GmailMessage struct {
	Subject     string       `json:"subject,omitempty"`
	From        string       `json:"from,omitempty"`
	To          []string     `json:"to,omitempty"`
	Body        string       `json:"body,omitempty"`
	ThreadID    string       `json:"thread_id,omitempty"`
	Date        *time.Time   `json:"date,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ZoomMeeting is the inbound payload of the zoom ingestion source.
type ZoomMeeting struct {
	MeetingID    string     `json:"meeting_id,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
	AudioURI     string     `json:"audio_uri,omitempty"`
	Participants []string   `json:"participants,omitempty"`
	Duration     int        `json:"duration,omitempty"`
	Diarization  []string   `json:"diarization,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
}

// WhatsAppMessage is the inbound payload of the whatsapp ingestion source.
type WhatsAppMessage struct {
	MessageID  string     `json:"message_id,omitempty"`
	FromNumber string     `json:"from_number,omitempty"`
	ToNumber   string     `json:"to_number,omitempty"`
	Caption    string     `json:"caption,omitempty"`
	AudioURI   string     `json:"audio_uri,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// CalendarEvent is the inbound payload of the calendar ingestion source.
type CalendarEvent struct {
	EventID     string     `json:"event_id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Attendees   []string   `json:"attendees,omitempty"`
}

// DeadLetter wraps an event whose processing failed, for re-delivery
// handling outside the pipeline.
type DeadLetter struct {
	Event    InteractionEvent `json:"event"`
	Error    string           `json:"error"`
	FailedAt time.Time        `json:"failed_at"`
}
