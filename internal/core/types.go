// Package core defines the fundamental types for the meeting agent.
package core

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// INBOUND MESSAGE - An email pulled from the mailbox
// -----------------------------------------------------------------------------

// InboundMessage is an immutable snapshot of one email.
// ID is stable across runs and is the only identity of a message.
type InboundMessage struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
	Labels     []string  `json:"labels"`
	Read       bool      `json:"read"`
}

// PlainTextBody returns the body as handed to the extractor
func (m InboundMessage) PlainTextBody() string {
	return strings.TrimSpace(m.Body)
}

// HasLabel reports whether the message carries the given label
func (m InboundMessage) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// FILTER RULE - Which messages are worth extracting
// -----------------------------------------------------------------------------

// ReadState constrains messages by read flag
type ReadState string

const (
	ReadAny    ReadState = "any"
	ReadOnly   ReadState = "read"
	UnreadOnly ReadState = "unread"
)

// FilterRule combines sender, subject, label and read criteria.
// An empty criterion imposes no constraint.
type FilterRule struct {
	Senders         []string  `json:"senders" yaml:"senders"`                   // exact address or "@domain"
	SubjectKeywords []string  `json:"subject_keywords" yaml:"subject_keywords"` // case-insensitive, any of
	Labels          []string  `json:"labels" yaml:"labels"`                     // any of
	ReadState       ReadState `json:"read_status" yaml:"read_status"`
}

// -----------------------------------------------------------------------------
// CANDIDATE MEETING - Draft produced by the extractor
// -----------------------------------------------------------------------------

// CandidateMeeting is an unvalidated meeting draft
type CandidateMeeting struct {
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
}

// Valid reports whether the draft may be committed to a calendar
func (m *CandidateMeeting) Valid() bool {
	if m == nil {
		return false
	}
	if strings.TrimSpace(m.Title) == "" {
		return false
	}
	if m.Start.IsZero() || m.End.IsZero() {
		return false
	}
	return m.End.After(m.Start)
}

// Duration returns the meeting length
func (m *CandidateMeeting) Duration() time.Duration {
	return m.End.Sub(m.Start)
}

// -----------------------------------------------------------------------------
// LEDGER ENTRY - Durable outcome per email id
// -----------------------------------------------------------------------------

// Ledger reasons recorded for emails that did not produce a meeting
const (
	ReasonFilteredOut    = "did not match filter criteria"
	ReasonNoMeeting      = "could not extract valid meeting information (missing date/time)"
	ReasonDuplicateEvent = "matching event already exists"
)

// LedgerEntry records how an email was resolved. Once written, the email is terminal.
type LedgerEntry struct {
	EmailID     string    `json:"email_id"`
	Subject     string    `json:"subject"` // snapshot, may be stale
	Sender      string    `json:"sender"`  // snapshot, may be stale
	ProcessedAt time.Time `json:"processed_at"`
	Committed   bool      `json:"committed"`
	Reason      string    `json:"reason,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
}

// NewLedgerEntry snapshots a message into an entry
func NewLedgerEntry(msg InboundMessage, committed bool, reason string) LedgerEntry {
	return LedgerEntry{
		EmailID:     msg.ID,
		Subject:     msg.Subject,
		Sender:      msg.Sender,
		ProcessedAt: time.Now().UTC(),
		Committed:   committed,
		Reason:      reason,
	}
}

// -----------------------------------------------------------------------------
// RUN STATISTICS - Counters for a single run cycle
// -----------------------------------------------------------------------------

// RunStatistics is scoped to one run cycle invocation
type RunStatistics struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"emails_checked"`
	Filtered   int       `json:"emails_filtered"`
	Committed  int       `json:"meetings_created"`
	Errors     int       `json:"errors"`
}

// Duration returns how long the cycle took
func (s RunStatistics) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
