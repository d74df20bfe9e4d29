// Package calendar wraps the Google Calendar API for event creation and overlap checks.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// DefaultCalendarID is used when no calendar is configured
const DefaultCalendarID = "primary"

// EventTimeZone is attached to every created event
const EventTimeZone = "UTC"

// Client wraps the Google Calendar API
type Client struct {
	service *calendar.Service
}

// NewClient creates a Calendar client. Production callers pass
// option.WithHTTPClient with an authorized client.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{service: service}, nil
}

// Event represents a calendar event
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	AllDay      bool       `json:"all_day"`
	Attendees   []Attendee `json:"attendees"`
	Organizer   string     `json:"organizer"`
	Status      string     `json:"status"` // confirmed, tentative, cancelled
	Link        string     `json:"link"`
	CalendarID  string     `json:"calendar_id"`
	Created     time.Time  `json:"created"`
}

// Attendee represents an event attendee
type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	ResponseStatus string `json:"response_status"` // needsAction, declined, tentative, accepted
}

// CreateEventRequest contains parameters for creating an event
type CreateEventRequest struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []string // Email addresses
	CalendarID  string   // Defaults to "primary"
}

// CreateEvent creates a new calendar event. Times are sent in UTC with an explicit time zone.
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error) {
	calendarID := orDefault(req.CalendarID)

	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start: &calendar.EventDateTime{
			DateTime: req.Start.UTC().Format(time.RFC3339),
			TimeZone: EventTimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.End.UTC().Format(time.RFC3339),
			TimeZone: EventTimeZone,
		},
	}

	if req.Location != "" {
		event.Location = req.Location
	}

	if len(req.Attendees) > 0 {
		attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
		for _, email := range req.Attendees {
			attendees = append(attendees, &calendar.EventAttendee{Email: email})
		}
		event.Attendees = attendees
	}

	created, err := c.service.Events.Insert(calendarID, event).
		Context(ctx).
		SendUpdates("all"). // Send notifications to attendees
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	events := convertEvents([]*calendar.Event{created}, calendarID)
	return &events[0], nil
}

// GetEvents retrieves events from a calendar within a time range.
// A non-empty query is passed through as free-text search.
func (c *Client) GetEvents(ctx context.Context, calendarID, query string, start, end time.Time) ([]Event, error) {
	calendarID = orDefault(calendarID)

	call := c.service.Events.List(calendarID).
		Context(ctx).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if query != "" {
		call = call.Q(query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	return convertEvents(events.Items, calendarID), nil
}

// HasOverlappingEvent reports whether an event titled title overlaps [start, end]
func (c *Client) HasOverlappingEvent(ctx context.Context, calendarID, title string, start, end time.Time) (bool, error) {
	events, err := c.GetEvents(ctx, calendarID, title, start, end)
	if err != nil {
		return false, err
	}

	// Free-text search is fuzzy; require a title match
	for _, e := range events {
		if e.Status == "cancelled" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(e.Summary), strings.TrimSpace(title)) {
			return true, nil
		}
	}
	return false, nil
}

func orDefault(calendarID string) string {
	if calendarID == "" {
		return DefaultCalendarID
	}
	return calendarID
}

// convertEvents converts Google Calendar events to our Event type
func convertEvents(items []*calendar.Event, calendarID string) []Event {
	events := make([]Event, 0, len(items))

	for _, item := range items {
		event := Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Status:      item.Status,
			Link:        item.HtmlLink,
			CalendarID:  calendarID,
		}

		if item.Start != nil {
			if item.Start.DateTime != "" {
				event.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
			} else if item.Start.Date != "" {
				event.Start, _ = time.Parse("2006-01-02", item.Start.Date)
				event.AllDay = true
			}
		}

		if item.End != nil {
			if item.End.DateTime != "" {
				event.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
			} else if item.End.Date != "" {
				event.End, _ = time.Parse("2006-01-02", item.End.Date)
			}
		}

		if item.Created != "" {
			event.Created, _ = time.Parse(time.RFC3339, item.Created)
		}

		if item.Organizer != nil {
			event.Organizer = item.Organizer.Email
		}

		if len(item.Attendees) > 0 {
			event.Attendees = make([]Attendee, 0, len(item.Attendees))
			for _, att := range item.Attendees {
				event.Attendees = append(event.Attendees, Attendee{
					Email:          att.Email,
					DisplayName:    att.DisplayName,
					ResponseStatus: att.ResponseStatus,
				})
			}
		}

		events = append(events, event)
	}

	return events
}
