package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

// PreprocessUseCase normalizes raw interaction events before extraction: it
// resolves the occurrence time, detects the text language, transcribes
// referenced audio, and lifts diarization tags out of the metadata.
// Transcription failures are not fatal; the event continues without a
// transcript.
type PreprocessUseCase struct {
	transcriber ports.Transcriber
	now         func() time.Time
}

func NewPreprocessUseCase(transcriber ports.Transcriber) *PreprocessUseCase {
	return &PreprocessUseCase{
		transcriber: transcriber,
		now:         time.Now,
	}
}

func (uc *PreprocessUseCase) Preprocess(ctx context.Context, event domain.InteractionEvent) (*domain.ProcessedEvent, error) {
	if !event.Channel.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preprocess event", fmt.Errorf("unknown channel %q", event.Channel))
	}
	if strings.TrimSpace(event.Source) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preprocess event", fmt.Errorf("source is required"))
	}

	occurredAt := uc.now().UTC()
	if event.OccurredAt != nil {
		occurredAt = event.OccurredAt.UTC()
	}

	processed := &domain.ProcessedEvent{
		RawText:    event.RawText,
		AudioURI:   event.AudioURI,
		Channel:    event.Channel,
		Source:     event.Source,
		OccurredAt: occurredAt,
		Metadata:   event.Metadata,
	}

	if event.RawText != "" {
		processed.Language = detectLanguage(event.RawText)
	}

	if event.AudioURI != "" {
		transcript, err := uc.transcriber.Transcribe(ctx, event.AudioURI)
		if err == nil && strings.TrimSpace(transcript) != "" {
			processed.Transcript = transcript
			if processed.RawText != "" {
				processed.RawText = processed.RawText + "\n\n" + transcript
			} else {
				processed.RawText = transcript
			}
		}
	}

	processed.DiarizationTags = diarizationTags(event.Metadata)

	return processed, nil
}

var scriptLanguages = []struct {
	lang   string
	tables []*unicode.RangeTable
}{
	{"ja", []*unicode.RangeTable{unicode.Hiragana, unicode.Katakana}},
	{"zh", []*unicode.RangeTable{unicode.Han}},
	{"ko", []*unicode.RangeTable{unicode.Hangul}},
	{"ru", []*unicode.RangeTable{unicode.Cyrillic}},
	{"ar", []*unicode.RangeTable{unicode.Arabic}},
}

// detectLanguage is a script-frequency heuristic: a language wins only when
// its script covers the majority of letters, otherwise English is assumed.
func detectLanguage(text string) string {
	counts := make([]int, len(scriptLanguages))
	total := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		for i, entry := range scriptLanguages {
			if unicode.In(r, entry.tables...) {
				counts[i]++
				break
			}
		}
	}
	if total == 0 {
		return "en"
	}
	best, bestCount := "en", 0
	for i, entry := range scriptLanguages {
		if counts[i] > bestCount {
			best, bestCount = entry.lang, counts[i]
		}
	}
	if bestCount*2 < total {
		return "en"
	}
	return best
}

func diarizationTags(metadata map[string]any) []string {
	raw, ok := metadata["diarization"]
	if !ok || raw == nil {
		return nil
	}
	switch typed := raw.(type) {
	case []string:
		return typed
	case []any:
		tags := make([]string, 0, len(typed))
		for _, entry := range typed {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, s)
			}
		}
		if len(tags) == 0 {
			return nil
		}
		return tags
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		tags := make([]string, 0, len(keys))
		for _, key := range keys {
			tags = append(tags, fmt.Sprintf("%s: %v", key, typed[key]))
		}
		return tags
	default:
		return nil
	}
}
