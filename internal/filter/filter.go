// Package filter decides which inbound messages are worth extracting.
package filter

import (
	"strings"

	"github.com/quantumlife/meetingagent/internal/core"
)

// Matches reports whether msg satisfies every criterion of rule.
// It never fails and has no side effects.
func Matches(msg core.InboundMessage, rule core.FilterRule) bool {
	return matchSender(msg.Sender, rule.Senders) &&
		matchSubject(msg.Subject, rule.SubjectKeywords) &&
		matchLabels(msg, rule.Labels) &&
		matchReadState(msg.Read, rule.ReadState)
}

// Apply partitions msgs into matching and rejected messages, preserving order
func Apply(msgs []core.InboundMessage, rule core.FilterRule) (matched, rejected []core.InboundMessage) {
	for _, msg := range msgs {
		if Matches(msg, rule) {
			matched = append(matched, msg)
		} else {
			rejected = append(rejected, msg)
		}
	}
	return matched, rejected
}

// matchSender accepts exact addresses and "@domain" tokens.
// Domain tokens match anywhere in the sender, so "@example.com" also
// matches "x@example.com.other.org".
func matchSender(sender string, senders []string) bool {
	if len(senders) == 0 {
		return true
	}
	for _, s := range senders {
		if strings.HasPrefix(s, "@") {
			if strings.Contains(sender, s) {
				return true
			}
		} else if s == sender {
			return true
		}
	}
	return false
}

func matchSubject(subject string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(subject)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func matchLabels(msg core.InboundMessage, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if msg.HasLabel(l) {
			return true
		}
	}
	return false
}

func matchReadState(read bool, state core.ReadState) bool {
	switch state {
	case core.ReadOnly:
		return read
	case core.UnreadOnly:
		return !read
	default:
		return true
	}
}
