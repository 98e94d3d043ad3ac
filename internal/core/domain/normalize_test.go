package domain

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNormalizeDealValueParsesCurrencyStrings(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"$75,000", 75000},
		{"50k", 50000},
		{"$1.5M", 1500000},
		{"120K", 120000},
		{"€2,500", 2500},
		{"1000000", 1000000},
	}
	for _, tc := range cases {
		got := NormalizeDealValue(strPtr(tc.raw))
		if got == nil {
			t.Fatalf("NormalizeDealValue(%q) = nil, want %v", tc.raw, tc.want)
		}
		if *got != tc.want {
			t.Fatalf("NormalizeDealValue(%q) = %v, want %v", tc.raw, *got, tc.want)
		}
	}
}

func TestNormalizeDealValueRejectsNonNumeric(t *testing.T) {
	if got := NormalizeDealValue(nil); got != nil {
		t.Fatalf("expected nil for nil input, got %v", *got)
	}
	for _, raw := range []string{"", "   ", "garbage", "$", "k"} {
		if got := NormalizeDealValue(strPtr(raw)); got != nil {
			t.Fatalf("NormalizeDealValue(%q) = %v, want nil", raw, *got)
		}
	}
}

func TestNormalizeFollowUpDateAbsolute(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	got := NormalizeFollowUpDate(strPtr("2025-11-12"), now)
	if got == nil || *got != "2025-11-12" {
		t.Fatalf("expected 2025-11-12, got %v", got)
	}
	got = NormalizeFollowUpDate(strPtr("November 12, 2025"), now)
	if got == nil || *got != "2025-11-12" {
		t.Fatalf("expected 2025-11-12 from long form, got %v", got)
	}
}

func TestNormalizeFollowUpDateRelative(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC) // a Wednesday

	got := NormalizeFollowUpDate(strPtr("tomorrow"), now)
	if got == nil || *got != "2025-10-02" {
		t.Fatalf("expected tomorrow = 2025-10-02, got %v", got)
	}

	got = NormalizeFollowUpDate(strPtr("next week"), now)
	if got == nil || *got != "2025-10-08" {
		t.Fatalf("expected next week = 2025-10-08, got %v", got)
	}

	got = NormalizeFollowUpDate(strPtr("in 3 days"), now)
	if got == nil || *got != "2025-10-04" {
		t.Fatalf("expected in 3 days = 2025-10-04, got %v", got)
	}

	got = NormalizeFollowUpDate(strPtr("next Friday"), now)
	if got == nil || *got != "2025-10-03" {
		t.Fatalf("expected next Friday = 2025-10-03, got %v", got)
	}

	// Same weekday as today resolves a full week ahead.
	got = NormalizeFollowUpDate(strPtr("Wednesday"), now)
	if got == nil || *got != "2025-10-08" {
		t.Fatalf("expected Wednesday = 2025-10-08, got %v", got)
	}
}

func TestNormalizeFollowUpDateUnparseable(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	if got := NormalizeFollowUpDate(nil, now); got != nil {
		t.Fatalf("expected nil for nil input, got %v", *got)
	}
	for _, raw := range []string{"", "  ", "whenever works", "32nd of Octember"} {
		if got := NormalizeFollowUpDate(strPtr(raw), now); got != nil {
			t.Fatalf("NormalizeFollowUpDate(%q) = %v, want nil", raw, *got)
		}
	}
}

func TestBlankToNull(t *testing.T) {
	if got := BlankToNull(nil); got != nil {
		t.Fatalf("expected nil for nil input")
	}
	if got := BlankToNull(strPtr("")); got != nil {
		t.Fatalf("expected nil for empty string, got %q", *got)
	}
	if got := BlankToNull(strPtr("   \t")); got != nil {
		t.Fatalf("expected nil for whitespace string, got %q", *got)
	}
	got := BlankToNull(strPtr("  Acme Corp  "))
	if got == nil || *got != "Acme Corp" {
		t.Fatalf("expected trimmed value, got %v", got)
	}
}

func TestNormalizeCandidateCoercesLLMFields(t *testing.T) {
	now := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)
	candidate := map[string]any{
		"summary":        "call recap",
		"deal_value":     "$50k",
		"follow_up_date": "tomorrow",
		"company":        "   ",
		"sentiment":      "",
	}
	NormalizeCandidate(candidate, now)

	if candidate["deal_value"] != 50000.0 {
		t.Fatalf("expected deal_value 50000, got %v", candidate["deal_value"])
	}
	if candidate["follow_up_date"] != "2025-10-02" {
		t.Fatalf("expected follow_up_date 2025-10-02, got %v", candidate["follow_up_date"])
	}
	if _, present := candidate["company"]; present {
		t.Fatalf("expected blank company removed")
	}
	if _, present := candidate["sentiment"]; present {
		t.Fatalf("expected blank sentiment removed")
	}
}

func TestNormalizeCandidateDropsGarbageValues(t *testing.T) {
	candidate := map[string]any{
		"deal_value":     "call me maybe",
		"follow_up_date": "at some point",
	}
	NormalizeCandidate(candidate, time.Now())

	if _, present := candidate["deal_value"]; present {
		t.Fatalf("expected unparseable deal_value removed")
	}
	if _, present := candidate["follow_up_date"]; present {
		t.Fatalf("expected unparseable follow_up_date removed")
	}
}
