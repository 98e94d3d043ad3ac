package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

// IngestEventUseCase builds interaction events out of source-specific
// payloads, archives them and hands them to the queue. Attachment text
// extraction is best-effort; archiving and publishing are not.
type IngestEventUseCase struct {
	extractor ports.AttachmentExtractor
	storage   ports.ObjectStorage
	queue     ports.EventQueue
	now       func() time.Time
}

func NewIngestEventUseCase(
	extractor ports.AttachmentExtractor,
	storage ports.ObjectStorage,
	queue ports.EventQueue,
) *IngestEventUseCase {
	return &IngestEventUseCase{
		extractor: extractor,
		storage:   storage,
		queue:     queue,
		now:       time.Now,
	}
}

func (uc *IngestEventUseCase) IngestGmail(ctx context.Context, msg domain.GmailMessage) (*domain.InteractionEvent, error) {
	rawText := msg.Body
	for _, att := range msg.Attachments {
		text, err := uc.extractor.ExtractText(ctx, att.Filename, att.Data)
		if err != nil {
			slog.Warn("attachment_extraction_failed", "filename", att.Filename, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		rawText = appendAttachmentText(rawText, att.Filename, text)
	}

	event := &domain.InteractionEvent{
		ID:         uuid.NewString(),
		RawText:    rawText,
		Channel:    domain.ChannelEmail,
		Source:     "gmail",
		OccurredAt: uc.resolveTime(msg.Date),
		Metadata: map[string]any{
			"subject":   msg.Subject,
			"from":      msg.From,
			"to":        msg.To,
			"thread_id": msg.ThreadID,
		},
	}
	return uc.enqueue(ctx, event)
}

func (uc *IngestEventUseCase) IngestZoom(ctx context.Context, meeting domain.ZoomMeeting) (*domain.InteractionEvent, error) {
	event := &domain.InteractionEvent{
		ID:         uuid.NewString(),
		RawText:    meeting.Transcript,
		AudioURI:   meeting.AudioURI,
		Channel:    domain.ChannelMeeting,
		Source:     "zoom",
		OccurredAt: uc.resolveTime(meeting.StartTime),
		Metadata: map[string]any{
			"meeting_id":   meeting.MeetingID,
			"participants": meeting.Participants,
			"duration":     meeting.Duration,
			"diarization":  meeting.Diarization,
		},
	}
	return uc.enqueue(ctx, event)
}

func (uc *IngestEventUseCase) IngestWhatsApp(ctx context.Context, msg domain.WhatsAppMessage) (*domain.InteractionEvent, error) {
	event := &domain.InteractionEvent{
		ID:         uuid.NewString(),
		RawText:    msg.Caption,
		AudioURI:   msg.AudioURI,
		Channel:    domain.ChannelVoiceNote,
		Source:     "whatsapp",
		OccurredAt: uc.resolveTime(msg.Timestamp),
		Metadata: map[string]any{
			"message_id":  msg.MessageID,
			"from_number": msg.FromNumber,
			"to_number":   msg.ToNumber,
		},
	}
	return uc.enqueue(ctx, event)
}

func (uc *IngestEventUseCase) IngestCalendar(ctx context.Context, cal domain.CalendarEvent) (*domain.InteractionEvent, error) {
	event := &domain.InteractionEvent{
		ID:         uuid.NewString(),
		RawText:    cal.Description,
		Channel:    domain.ChannelMeeting,
		Source:     "calendar",
		OccurredAt: uc.resolveTime(cal.StartTime),
		Metadata: map[string]any{
			"event_id":   cal.EventID,
			"title":      cal.Title,
			"start_time": cal.StartTime,
			"end_time":   cal.EndTime,
			"attendees":  cal.Attendees,
		},
	}
	return uc.enqueue(ctx, event)
}

// IngestWebhook accepts a pre-built event, filling in the identifier and
// the source/channel defaults the producer left out.
func (uc *IngestEventUseCase) IngestWebhook(ctx context.Context, event domain.InteractionEvent) (*domain.InteractionEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Channel == "" {
		event.Channel = domain.ChannelWebhook
	}
	if strings.TrimSpace(event.Source) == "" {
		event.Source = "webhook"
	}
	event.OccurredAt = uc.resolveTime(event.OccurredAt)
	return uc.enqueue(ctx, &event)
}

func (uc *IngestEventUseCase) enqueue(ctx context.Context, event *domain.InteractionEvent) (*domain.InteractionEvent, error) {
	if err := uc.archive(ctx, event); err != nil {
		return nil, fmt.Errorf("archive event payload: %w", err)
	}
	if err := uc.queue.PublishInteraction(ctx, *event); err != nil {
		return nil, fmt.Errorf("publish interaction event: %w", err)
	}
	return event, nil
}

func (uc *IngestEventUseCase) archive(ctx context.Context, event *domain.InteractionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("events/%s.json", event.ID)
	return uc.storage.Save(ctx, key, bytes.NewReader(payload))
}

func (uc *IngestEventUseCase) resolveTime(t *time.Time) *time.Time {
	if t != nil {
		utc := t.UTC()
		return &utc
	}
	now := uc.now().UTC()
	return &now
}

func appendAttachmentText(rawText, filename, text string) string {
	section := fmt.Sprintf("[Attachment %s]\n%s", filename, text)
	if strings.TrimSpace(rawText) == "" {
		return section
	}
	return rawText + "\n\n" + section
}
