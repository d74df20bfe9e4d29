// Package extractor turns free-form email text into a candidate meeting
// through a single text-generation call.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/llm"
	"github.com/quantumlife/meetingagent/internal/logging"
)

const (
	defaultTitle = "Meeting"
	defaultTime  = "09:00"
)

// Extractor asks a generator for meeting fields and parses the answer
type Extractor struct {
	gen    llm.Generator
	logger *logging.Logger
}

// New creates an extractor over the given generator
func New(gen llm.Generator, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Extractor{gen: gen, logger: logger}
}

// Extract returns the meeting described by subject and body.
// A nil meeting with a nil error means no usable meeting was found.
// Only a failed generation call is returned as an error.
func (e *Extractor) Extract(ctx context.Context, subject, body string, defaultMinutes int) (*core.CandidateMeeting, error) {
	response, err := e.gen.Generate(ctx, BuildPrompt(subject, body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrGenerationFailed, err)
	}

	meeting, reason := Parse(response, defaultMinutes)
	if meeting == nil {
		e.logger.Debug("No meeting in response: %s", reason)
	}
	return meeting, nil
}

// BuildPrompt renders the extraction instructions. Output depends only on its inputs.
func BuildPrompt(subject, body string) string {
	var b strings.Builder
	b.WriteString("Extract meeting information from the following email.\n")
	b.WriteString("Return a JSON object with these fields:\n")
	b.WriteString("- title: Meeting title\n")
	b.WriteString("- date: Meeting date in ISO format (YYYY-MM-DD)\n")
	b.WriteString("- time: Meeting time in 24h format (HH:MM)\n")
	b.WriteString("- duration_minutes: Duration in minutes (if specified)\n")
	b.WriteString("- description: Brief meeting description\n")
	b.WriteString("- location: Physical or virtual location (if specified)\n")
	b.WriteString("- attendees: List of email addresses (if specified)\n")
	b.WriteString("\n")
	b.WriteString("If any information is not found, omit that field from the JSON.\n")
	b.WriteString("\n")
	b.WriteString("Email Subject: ")
	b.WriteString(subject)
	b.WriteString("\n\nEmail Body:\n")
	b.WriteString(body)
	b.WriteString("\n\nReturn ONLY the JSON object, no additional text.\n")
	return b.String()
}

// payload mirrors the JSON the model is asked for. Every field is optional.
type payload struct {
	Title           *string  `json:"title"`
	Subject         *string  `json:"subject"` // older prompt wording
	Date            string   `json:"date"`
	Time            string   `json:"time"`
	DurationMinutes *float64 `json:"duration_minutes"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	Attendees       []string `json:"attendees"`
}

// Parse converts a raw model response into a candidate meeting.
// It returns nil and a short reason when the response holds no usable meeting.
// The result is not validated.
func Parse(response string, defaultMinutes int) (*core.CandidateMeeting, string) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end < start {
		return nil, "no JSON object in response"
	}

	var p payload
	if err := json.Unmarshal([]byte(response[start:end+1]), &p); err != nil {
		return nil, fmt.Sprintf("malformed JSON: %v", err)
	}

	date := strings.TrimSpace(p.Date)
	if date == "" {
		return nil, "missing date"
	}
	clock := strings.TrimSpace(p.Time)
	if clock == "" {
		clock = defaultTime
	}

	startAt, err := parseDateTime(date, clock)
	if err != nil {
		return nil, err.Error()
	}

	duration := time.Duration(defaultMinutes) * time.Minute
	if p.DurationMinutes != nil {
		duration = time.Duration(*p.DurationMinutes * float64(time.Minute))
	}
	if duration <= 0 {
		return nil, "non-positive duration"
	}

	title := resolveTitle(p.Title, p.Subject)

	return &core.CandidateMeeting{
		Title:       title,
		Start:       startAt,
		End:         startAt.Add(duration),
		Description: p.Description,
		Location:    strings.TrimSpace(p.Location),
		Attendees:   cleanAttendees(p.Attendees),
	}, ""
}

// resolveTitle prefers title over subject. The default applies only when
// both are absent; a blank value is kept so validation can reject it.
func resolveTitle(title, subject *string) string {
	if title == nil && subject == nil {
		return defaultTitle
	}
	var t string
	if title != nil {
		t = strings.TrimSpace(*title)
	}
	if t == "" && subject != nil {
		t = strings.TrimSpace(*subject)
	}
	return t
}

var clockLayouts = []string{"15:04", "15:04:05"}

// parseDateTime composes a UTC instant from YYYY-MM-DD and HH:MM
func parseDateTime(date, clock string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", date)
	}

	for _, layout := range clockLayouts {
		tod, err := time.ParseInLocation(layout, clock, time.UTC)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(),
			tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", clock)
}

func cleanAttendees(in []string) []string {
	var out []string
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
