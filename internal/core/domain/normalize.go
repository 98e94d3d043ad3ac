package domain

import (
	"strconv"
	"strings"
	"time"
)

var currencyStripper = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", ",", "", " ", "")

// NormalizeDealValue coerces a loosely formatted money string into a float.
// Currency symbols and thousands separators are stripped, a trailing k/K
// multiplies by 1e3 and m/M by 1e6, and the first numeric run is taken.
// Total over its input: nil when there are no digits or no input.
func NormalizeDealValue(raw *string) *float64 {
	if raw == nil {
		return nil
	}
	s := currencyStripper.Replace(strings.TrimSpace(*raw))
	if s == "" {
		return nil
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		multiplier = 1_000
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
	}

	run := firstNumericRun(s)
	if run == "" {
		return nil
	}
	value, err := strconv.ParseFloat(run, 64)
	if err != nil {
		return nil
	}
	value *= multiplier
	return &value
}

func firstNumericRun(s string) string {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	end := start
	seenDot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	return strings.TrimSuffix(s[start:end], ".")
}

var absoluteDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// NormalizeFollowUpDate resolves an absolute date or a relative phrase
// ("tomorrow", "next week", "in 3 days", a weekday name) against the given
// processing time and returns it in canonical YYYY-MM-DD form. Total over
// its input: nil when the value cannot be interpreted as a date.
func NormalizeFollowUpDate(raw *string, now time.Time) *string {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil
	}

	for _, layout := range absoluteDateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return canonicalDate(parsed)
		}
	}

	if resolved, ok := resolveRelativeDate(strings.ToLower(s), now); ok {
		return canonicalDate(resolved)
	}
	return nil
}

func resolveRelativeDate(phrase string, now time.Time) (time.Time, bool) {
	switch phrase {
	case "today":
		return now, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	case "day after tomorrow":
		return now.AddDate(0, 0, 2), true
	case "yesterday":
		return now.AddDate(0, 0, -1), true
	case "next week":
		return now.AddDate(0, 0, 7), true
	case "next month":
		return now.AddDate(0, 1, 0), true
	case "next year":
		return now.AddDate(1, 0, 0), true
	}

	if weekday, ok := weekdayNames[strings.TrimPrefix(phrase, "next ")]; ok {
		ahead := (int(weekday) - int(now.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		return now.AddDate(0, 0, ahead), true
	}

	// "in N days|weeks|months"
	fields := strings.Fields(phrase)
	if len(fields) == 3 && fields[0] == "in" {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		switch strings.TrimSuffix(fields[2], "s") {
		case "day":
			return now.AddDate(0, 0, n), true
		case "week":
			return now.AddDate(0, 0, 7*n), true
		case "month":
			return now.AddDate(0, n, 0), true
		}
	}
	return time.Time{}, false
}

func canonicalDate(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}

// BlankToNull treats empty and whitespace-only strings as null and trims
// everything else. Applied before every persistence write: no empty string
// ever reaches a stored record.
func BlankToNull(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// NormalizeCandidate coerces the loosely typed fields of a raw extraction
// mapping in place before validation: money strings become numbers, date
// phrases become canonical dates, and blank optional strings are removed
// entirely rather than validated as empty values.
func NormalizeCandidate(candidate map[string]any, now time.Time) {
	if candidate == nil {
		return
	}

	if raw, ok := candidate["deal_value"].(string); ok {
		if value := NormalizeDealValue(&raw); value != nil {
			candidate["deal_value"] = *value
		} else {
			delete(candidate, "deal_value")
		}
	}

	if raw, ok := candidate["follow_up_date"].(string); ok {
		if date := NormalizeFollowUpDate(&raw, now); date != nil {
			candidate["follow_up_date"] = *date
		} else {
			delete(candidate, "follow_up_date")
		}
	}

	for _, key := range []string{"company", "next_step", "sentiment", "currency"} {
		if raw, ok := candidate[key].(string); ok {
			if BlankToNull(&raw) == nil {
				delete(candidate, key)
			}
		}
	}
}
