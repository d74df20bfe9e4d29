// Package report renders the ledger as a markdown table.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
)

const (
	maxSubject = 40
	maxSender  = 30

	reasonCommitted = "Successfully created calendar event"
	reasonUnknown   = "Could not extract valid meeting information"
)

// Summary counts ledger outcomes
type Summary struct {
	Total     int
	Committed int
}

// Failed returns the number of emails that did not produce a meeting
func (s Summary) Failed() int {
	return s.Total - s.Committed
}

// Summarize counts committed and failed entries
func Summarize(entries []core.LedgerEntry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		if e.Committed {
			s.Committed++
		}
	}
	return s
}

// Render writes the report for entries, which should already be newest first
func Render(w io.Writer, entries []core.LedgerEntry, generated time.Time) error {
	sum := Summarize(entries)

	var b strings.Builder
	b.WriteString("# Email Processing Report\n")
	fmt.Fprintf(&b, "\nGenerated: %s\n\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Emails Processed: %d\n\n", sum.Total)

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- ✅ Meetings Created: %d\n", sum.Committed)
	fmt.Fprintf(&b, "- ❌ Meetings Failed: %d\n\n", sum.Failed())

	b.WriteString("## Processed Emails\n\n")
	b.WriteString("| # | Subject | Sender | Processed At | Meeting Created | Reason |\n")
	b.WriteString("|---|---------|--------|--------------|-----------------|--------|")

	for i, e := range entries {
		status, reason := "❌ No", e.Reason
		if e.Committed {
			status, reason = "✅ Yes", reasonCommitted
		} else if reason == "" {
			reason = reasonUnknown
		}

		fmt.Fprintf(&b, "\n| %d | %s | %s | %s | %s | %s |",
			i+1,
			cell(truncate(orNA(e.Subject), maxSubject)),
			cell(truncate(orNA(e.Sender), maxSender)),
			e.ProcessedAt.Format("2006-01-02 15:04"),
			status,
			cell(reason),
		)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// truncate shortens s to max runes, ending in "..."
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// cell keeps a value from breaking the table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
