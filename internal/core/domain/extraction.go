package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultCurrency is assumed whenever extraction does not name one.
	DefaultCurrency = "USD"

	fallbackSummaryLimit = 500
	fallbackSummaryEmpty = "No content available"
)

// Contact is one person mentioned in an interaction, as extracted by the
// LLM. Every field is optional; the storage layer decides whether the entry
// is worth persisting.
type Contact struct {
	FullName *string `json:"full_name,omitempty"`
	Title    *string `json:"title,omitempty"`
	Email    *string `json:"email,omitempty"`
	Company  *string `json:"company,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// HasIdentity reports whether the contact carries enough signal to upsert.
func (c Contact) HasIdentity() bool {
	return c.FullName != nil || c.Email != nil
}

// ExtractedData is the structured output of one extraction run. It is
// consumed once by the storage layer and decomposed into relational rows,
// never persisted verbatim.
type ExtractedData struct {
	Contacts     []Contact  `json:"contacts"`
	Company      *string    `json:"company,omitempty"`
	DealValue    *float64   `json:"deal_value,omitempty"`
	Currency     string     `json:"currency"`
	NextStep     *string    `json:"next_step,omitempty"`
	FollowUpDate *string    `json:"follow_up_date,omitempty"`
	Sentiment    *Sentiment `json:"sentiment,omitempty"`
	RiskFlags    []string   `json:"risk_flags"`
	Summary      string     `json:"summary"`
	ActionItems  []string   `json:"action_items"`
}

// ExtractionResult is what the extraction engine hands back for every event.
type ExtractionResult struct {
	Data       ExtractedData `json:"data"`
	Confidence float64       `json:"confidence"`
	ElapsedMS  int64         `json:"elapsed_ms"`
}

// ParseOutcome is the caller-visible result of one full pipeline run.
type ParseOutcome struct {
	InteractionID string        `json:"interaction_id"`
	Data          ExtractedData `json:"extracted_data"`
	Confidence    float64       `json:"confidence"`
	ElapsedMS     int64         `json:"processing_time_ms"`
}

// ValidationError names the field that violated the extraction contract.
// The extraction engine recovers from these locally; they never reach the
// event producer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationFailed(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FallbackSummary builds the deterministic summary substituted whenever
// extraction cannot produce one: the first 500 characters of the input, or
// a fixed placeholder when there is no input at all.
func FallbackSummary(text string) string {
	if strings.TrimSpace(text) == "" {
		return fallbackSummaryEmpty
	}
	runes := []rune(text)
	if len(runes) <= fallbackSummaryLimit {
		return text
	}
	return string(runes[:fallbackSummaryLimit])
}

// FallbackExtractedData is the minimal always-valid record used when a
// pipeline stage fails.
func FallbackExtractedData(inputText string) ExtractedData {
	return ExtractedData{
		Contacts:    []Contact{},
		Currency:    DefaultCurrency,
		RiskFlags:   []string{},
		Summary:     FallbackSummary(inputText),
		ActionItems: []string{},
	}
}

// ParseExtractedData validates a candidate mapping against the extraction
// contract and decodes it into ExtractedData. It is strict: a summary must
// be present and non-empty, a follow-up date must be a real calendar date
// in YYYY-MM-DD form, and a sentiment must be one of the known values.
func ParseExtractedData(candidate map[string]any) (ExtractedData, error) {
	out := ExtractedData{
		Contacts:    []Contact{},
		Currency:    DefaultCurrency,
		RiskFlags:   []string{},
		ActionItems: []string{},
	}

	summary, ok, err := optionalString(candidate, "summary")
	if err != nil {
		return ExtractedData{}, err
	}
	if !ok || strings.TrimSpace(summary) == "" {
		return ExtractedData{}, validationFailed("summary", "required non-empty string")
	}
	out.Summary = summary

	if raw, present := candidate["contacts"]; present && raw != nil {
		entries, ok := raw.([]any)
		if !ok {
			return ExtractedData{}, validationFailed("contacts", "must be a list")
		}
		for i, entry := range entries {
			fields, ok := entry.(map[string]any)
			if !ok {
				return ExtractedData{}, validationFailed(fmt.Sprintf("contacts[%d]", i), "must be an object")
			}
			contact, err := parseContact(fields, i)
			if err != nil {
				return ExtractedData{}, err
			}
			out.Contacts = append(out.Contacts, contact)
		}
	}

	company, ok, err := optionalString(candidate, "company")
	if err != nil {
		return ExtractedData{}, err
	}
	if ok {
		out.Company = BlankToNull(&company)
	}

	if raw, present := candidate["deal_value"]; present && raw != nil {
		value, ok := raw.(float64)
		if !ok {
			return ExtractedData{}, validationFailed("deal_value", "must be a number")
		}
		out.DealValue = &value
	}

	currency, ok, err := optionalString(candidate, "currency")
	if err != nil {
		return ExtractedData{}, err
	}
	if ok && strings.TrimSpace(currency) != "" {
		out.Currency = strings.TrimSpace(currency)
	}

	nextStep, ok, err := optionalString(candidate, "next_step")
	if err != nil {
		return ExtractedData{}, err
	}
	if ok {
		out.NextStep = BlankToNull(&nextStep)
	}

	followUp, ok, err := optionalString(candidate, "follow_up_date")
	if err != nil {
		return ExtractedData{}, err
	}
	if ok && strings.TrimSpace(followUp) != "" {
		followUp = strings.TrimSpace(followUp)
		if _, parseErr := time.Parse("2006-01-02", followUp); parseErr != nil {
			return ExtractedData{}, validationFailed("follow_up_date", "must be a valid YYYY-MM-DD date")
		}
		out.FollowUpDate = &followUp
	}

	sentiment, ok, err := optionalString(candidate, "sentiment")
	if err != nil {
		return ExtractedData{}, err
	}
	if ok && strings.TrimSpace(sentiment) != "" {
		s := Sentiment(strings.ToLower(strings.TrimSpace(sentiment)))
		if !s.Valid() {
			return ExtractedData{}, validationFailed("sentiment", "must be one of positive, neutral, negative")
		}
		out.Sentiment = &s
	}

	out.RiskFlags, err = stringList(candidate, "risk_flags")
	if err != nil {
		return ExtractedData{}, err
	}
	out.ActionItems, err = stringList(candidate, "action_items")
	if err != nil {
		return ExtractedData{}, err
	}

	return out, nil
}

func parseContact(fields map[string]any, index int) (Contact, error) {
	var contact Contact
	for key, target := range map[string]**string{
		"full_name": &contact.FullName,
		"title":     &contact.Title,
		"email":     &contact.Email,
		"company":   &contact.Company,
		"phone":     &contact.Phone,
	} {
		value, ok, err := optionalString(fields, key)
		if err != nil {
			return Contact{}, validationFailed(fmt.Sprintf("contacts[%d].%s", index, key), "must be a string")
		}
		if ok {
			*target = BlankToNull(&value)
		}
	}
	return contact, nil
}

func optionalString(source map[string]any, key string) (string, bool, error) {
	raw, present := source[key]
	if !present || raw == nil {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, validationFailed(key, "must be a string")
	}
	return value, true, nil
}

func stringList(source map[string]any, key string) ([]string, error) {
	raw, present := source[key]
	if !present || raw == nil {
		return []string{}, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, validationFailed(key, "must be a list of strings")
	}
	out := make([]string, 0, len(entries))
	for i, entry := range entries {
		switch v := entry.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				out = append(out, v)
			}
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(v))
		default:
			return nil, validationFailed(fmt.Sprintf("%s[%d]", key, i), "must be a string")
		}
	}
	return out, nil
}
