// Package gmail wraps the Gmail API as the agent's mailbox.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/quantumlife/meetingagent/internal/core"
)

const (
	labelUnread = "UNREAD"
	pageSize    = 100
)

// Client wraps the Gmail API
type Client struct {
	service *gmail.Service
	userID  string // "me" for authenticated user
	query   string
}

// NewClient creates a Gmail API client. query is an optional Gmail search
// expression applied to every Fetch.
func NewClient(ctx context.Context, query string, opts ...option.ClientOption) (*Client, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{
		service: service,
		userID:  "me",
		query:   query,
	}, nil
}

// Fetch returns up to max messages, newest first as Gmail lists them
func (c *Client) Fetch(ctx context.Context, max int) ([]core.InboundMessage, error) {
	ids, err := c.listMessageIDs(ctx, max)
	if err != nil {
		return nil, err
	}

	messages := make([]core.InboundMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := c.GetMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	return messages, nil
}

func (c *Client) listMessageIDs(ctx context.Context, max int) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		call := c.service.Users.Messages.List(c.userID).Context(ctx)
		if c.query != "" {
			call = call.Q(c.query)
		}
		batch := pageSize
		if max > 0 && max-len(ids) < batch {
			batch = max - len(ids)
		}
		call = call.MaxResults(int64(batch))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		if resp.NextPageToken == "" || (max > 0 && len(ids) >= max) {
			break
		}
		pageToken = resp.NextPageToken
	}

	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// GetMessage fetches full message details
func (c *Client) GetMessage(ctx context.Context, messageID string) (*core.InboundMessage, error) {
	msg, err := c.service.Users.Messages.Get(c.userID, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}

	return parseMessage(msg), nil
}

// MarkRead removes the UNREAD label
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.service.Users.Messages.Modify(c.userID, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{labelUnread},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark read %s: %w", messageID, err)
	}
	return nil
}

// parseMessage converts a Gmail API message into an InboundMessage
func parseMessage(msg *gmail.Message) *core.InboundMessage {
	result := &core.InboundMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Labels:   msg.LabelIds,
		Read:     true,
	}

	for _, label := range msg.LabelIds {
		if label == labelUnread {
			result.Read = false
			break
		}
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "from":
				result.Sender = senderAddress(header.Value)
			case "subject":
				result.Subject = header.Value
			case "date":
				if t, err := parseDate(header.Value); err == nil {
					result.ReceivedAt = t
				}
			}
		}

		result.Body = extractBody(msg.Payload)
	}

	// Fallback to internal date
	if result.ReceivedAt.IsZero() && msg.InternalDate > 0 {
		result.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}

	return result
}

// senderAddress reduces "Name <addr>" to addr; unparseable values are kept as-is
func senderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}

// extractBody prefers the first text/plain part, then the direct body,
// then a stripped text/html part
func extractBody(payload *gmail.MessagePart) string {
	var htmlBody string
	for _, part := range payload.Parts {
		switch {
		case part.MimeType == "text/plain":
			if text, ok := decodePart(part); ok {
				return text
			}
		case part.MimeType == "text/html" && htmlBody == "":
			if text, ok := decodePart(part); ok {
				htmlBody = stripHTML(text)
			}
		case len(part.Parts) > 0:
			// Nested multipart
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	if text, ok := decodePart(payload); ok {
		if payload.MimeType == "text/html" {
			return stripHTML(text)
		}
		return text
	}

	return htmlBody
}

func decodePart(part *gmail.MessagePart) (string, bool) {
	if part.Body == nil || part.Body.Data == "" {
		return "", false
	}
	if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(part.Body.Data); err == nil {
		return string(decoded), true
	}
	return "", false
}

// parseDate tries multiple date formats
func parseDate(s string) (time.Time, error) {
	if t, err := mail.ParseDate(s); err == nil {
		return t, nil
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		"2 Jan 2006 15:04:05 -0700",
		time.RFC822Z,
		time.RFC822,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// stripHTML removes HTML tags (basic implementation)
func stripHTML(s string) string {
	var result strings.Builder
	inTag := false

	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			result.WriteRune(r)
		}
	}

	lines := strings.Split(result.String(), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
