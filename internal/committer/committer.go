// Package committer turns validated candidate meetings into calendar events.
package committer

import (
	"context"
	"fmt"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/spaces/calendar"
)

// Calendar is the remote calendar the committer writes to
type Calendar interface {
	CreateEvent(ctx context.Context, req calendar.CreateEventRequest) (*calendar.Event, error)
	HasOverlappingEvent(ctx context.Context, calendarID, title string, start, end time.Time) (bool, error)
}

// Committer creates one calendar event per meeting
type Committer struct {
	cal Calendar
}

// New creates a committer over the given calendar
func New(cal Calendar) *Committer {
	return &Committer{cal: cal}
}

// Commit creates the event and returns its remote id. An invalid meeting is
// rejected with core.ErrInvalidMeeting before any remote call.
func (c *Committer) Commit(ctx context.Context, meeting *core.CandidateMeeting, calendarID string) (string, error) {
	if !meeting.Valid() {
		return "", fmt.Errorf("%w: refusing to commit %+v", core.ErrInvalidMeeting, meeting)
	}

	event, err := c.cal.CreateEvent(ctx, BuildRequest(meeting, calendarID))
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

// Exists reports whether an event with the same title already overlaps the meeting
func (c *Committer) Exists(ctx context.Context, meeting *core.CandidateMeeting, calendarID string) (bool, error) {
	if !meeting.Valid() {
		return false, fmt.Errorf("%w: cannot check %+v", core.ErrInvalidMeeting, meeting)
	}
	return c.cal.HasOverlappingEvent(ctx, orDefault(calendarID), meeting.Title, meeting.Start, meeting.End)
}

// BuildRequest maps a meeting onto a calendar creation request
func BuildRequest(meeting *core.CandidateMeeting, calendarID string) calendar.CreateEventRequest {
	req := calendar.CreateEventRequest{
		Summary:     meeting.Title,
		Description: meeting.Description,
		Location:    meeting.Location,
		Start:       meeting.Start.UTC(),
		End:         meeting.End.UTC(),
		CalendarID:  orDefault(calendarID),
	}
	if len(meeting.Attendees) > 0 {
		req.Attendees = append([]string(nil), meeting.Attendees...)
	}
	return req
}

func orDefault(calendarID string) string {
	if calendarID == "" {
		return calendar.DefaultCalendarID
	}
	return calendarID
}
