// Package agent implements the run cycle: fetch, filter, extract, commit, ledger.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/filter"
	"github.com/quantumlife/meetingagent/internal/logging"
)

// Mailbox supplies candidate emails
type Mailbox interface {
	Fetch(ctx context.Context, max int) ([]core.InboundMessage, error)
	MarkRead(ctx context.Context, id string) error
}

// Extractor turns email text into a candidate meeting; nil means none found
type Extractor interface {
	Extract(ctx context.Context, subject, body string, defaultMinutes int) (*core.CandidateMeeting, error)
}

// Committer writes meetings to the calendar
type Committer interface {
	Commit(ctx context.Context, meeting *core.CandidateMeeting, calendarID string) (string, error)
	Exists(ctx context.Context, meeting *core.CandidateMeeting, calendarID string) (bool, error)
}

// Ledger is the durable per-email outcome record
type Ledger interface {
	Exists(ctx context.Context, emailID string) (bool, error)
	Record(ctx context.Context, entry core.LedgerEntry) error
}

// RunRecorder persists finished cycles
type RunRecorder interface {
	RecordRun(ctx context.Context, stats core.RunStatistics) error
}

// RunObserver is notified after every cycle
type RunObserver interface {
	RunFinished(stats core.RunStatistics)
}

// Config for agent
type Config struct {
	Mailbox   Mailbox
	Extractor Extractor
	Committer Committer
	Ledger    Ledger

	Rule            core.FilterRule
	CalendarID      string
	DefaultDuration int // minutes
	MaxEmails       int
	MarkRead        bool
	CheckDuplicates bool

	Logger    *logging.Logger
	Recorder  RunRecorder   // optional
	Observers []RunObserver // optional
}

// Agent runs cycles. It holds no state between cycles besides the ledger,
// so callers must not run two cycles at once (see Serialized).
type Agent struct {
	cfg    Config
	logger *logging.Logger
}

// New creates a new agent
func New(cfg Config) *Agent {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 60
	}
	if cfg.MaxEmails <= 0 {
		cfg.MaxEmails = 50
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Agent{cfg: cfg, logger: logger}
}

// Run executes one cycle and returns its statistics. Per-email failures are
// counted and logged; only a failed fetch ends the cycle early.
func (a *Agent) Run(ctx context.Context) (stats core.RunStatistics) {
	stats = core.RunStatistics{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	log := a.logger.WithField("run_id", stats.RunID[:8])

	defer func() {
		stats.FinishedAt = time.Now().UTC()
		log.Info("Run completed: checked=%d filtered=%d created=%d errors=%d",
			stats.Fetched, stats.Filtered, stats.Committed, stats.Errors)
		a.finish(ctx, log, stats)
	}()

	log.Info("Starting run")

	messages, err := a.cfg.Mailbox.Fetch(ctx, a.cfg.MaxEmails)
	if err != nil {
		log.Error("Run aborted: %v", fmt.Errorf("%w: %v", core.ErrFetchFailed, err))
		stats.Errors++
		return stats
	}
	stats.Fetched = len(messages)
	log.Info("Fetched %d emails", len(messages))

	matched, rejected := filter.Apply(messages, a.cfg.Rule)
	stats.Filtered = len(matched)
	log.Info("Filtered to %d emails", len(matched))

	for _, msg := range rejected {
		if ctx.Err() != nil {
			break
		}
		if err := a.recordFilteredOut(ctx, msg); err != nil {
			log.WithField("email_id", msg.ID).Error("Failed to ledger filtered-out email: %v", err)
			stats.Errors++
		}
	}

	for _, msg := range matched {
		if ctx.Err() != nil {
			log.Warn("Run cancelled: %v", ctx.Err())
			break
		}

		msgLog := log.WithField("email_id", msg.ID)
		res, err := a.process(ctx, msgLog, msg)
		if err != nil {
			msgLog.Error("Error processing email: %v", err)
			stats.Errors++
		}
		if res == outcomeCommitted {
			stats.Committed++
		}
	}

	return stats
}

func (a *Agent) recordFilteredOut(ctx context.Context, msg core.InboundMessage) error {
	seen, err := a.cfg.Ledger.Exists(ctx, msg.ID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	return a.cfg.Ledger.Record(ctx, core.NewLedgerEntry(msg, false, core.ReasonFilteredOut))
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRejected
	outcomeCommitted
)

// process handles one filtered-in email. A returned error leaves the email
// un-ledgered unless the calendar already accepted the event.
func (a *Agent) process(ctx context.Context, log *logging.Logger, msg core.InboundMessage) (result outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	seen, err := a.cfg.Ledger.Exists(ctx, msg.ID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("ledger lookup: %w", err)
	}
	if seen {
		log.Debug("Already processed, skipping")
		return outcomeSkipped, nil
	}

	log.Info("Processing email: %s", msg.Subject)

	meeting, err := a.cfg.Extractor.Extract(ctx, msg.Subject, msg.PlainTextBody(), a.cfg.DefaultDuration)
	if err != nil {
		return outcomeSkipped, err
	}

	if !meeting.Valid() {
		log.Warn("Could not extract valid meeting")
		return outcomeRejected, a.cfg.Ledger.Record(ctx, core.NewLedgerEntry(msg, false, core.ReasonNoMeeting))
	}

	meeting.Description = withSource(meeting.Description, msg.Subject)

	if a.cfg.CheckDuplicates {
		dup, err := a.cfg.Committer.Exists(ctx, meeting, a.cfg.CalendarID)
		if err != nil {
			return outcomeSkipped, fmt.Errorf("duplicate check: %w", err)
		}
		if dup {
			log.Info("Matching event already exists for: %s", meeting.Title)
			return outcomeRejected, a.cfg.Ledger.Record(ctx, core.NewLedgerEntry(msg, false, core.ReasonDuplicateEvent))
		}
	}

	eventID, err := a.cfg.Committer.Commit(ctx, meeting, a.cfg.CalendarID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("create event: %w", err)
	}
	log.Info("Created calendar event %s for meeting: %s", eventID, meeting.Title)

	entry := core.NewLedgerEntry(msg, true, "")
	entry.EventID = eventID
	if err := a.cfg.Ledger.Record(ctx, entry); err != nil {
		// The event exists but the email will be seen again next cycle
		return outcomeCommitted, fmt.Errorf("ledger write after creating event %s: %w", eventID, err)
	}

	if a.cfg.MarkRead {
		if err := a.cfg.Mailbox.MarkRead(ctx, msg.ID); err != nil {
			log.Warn("Failed to mark email read: %v", err)
		}
	}

	return outcomeCommitted, nil
}

// withSource appends a provenance line naming the source email
func withSource(description, subject string) string {
	line := "Source: " + subject
	if description == "" {
		return line
	}
	return description + "\n\n" + line
}

func (a *Agent) finish(ctx context.Context, log *logging.Logger, stats core.RunStatistics) {
	if a.cfg.Recorder != nil {
		// The cycle context may already be cancelled; history is still worth keeping
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.cfg.Recorder.RecordRun(recCtx, stats); err != nil {
			log.Warn("Failed to record run: %v", err)
		}
	}
	for _, o := range a.cfg.Observers {
		o.RunFinished(stats)
	}
}
