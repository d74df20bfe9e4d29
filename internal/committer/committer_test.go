package committer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/spaces/calendar"
)

type fakeCalendar struct {
	created   []calendar.CreateEventRequest
	createErr error
	overlap   bool
	queries   []string
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, req calendar.CreateEventRequest) (*calendar.Event, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &calendar.Event{ID: "evt-1", Summary: req.Summary}, nil
}

func (f *fakeCalendar) HasOverlappingEvent(ctx context.Context, calendarID, title string, start, end time.Time) (bool, error) {
	f.queries = append(f.queries, calendarID+"|"+title)
	return f.overlap, nil
}

func validMeeting() *core.CandidateMeeting {
	start := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	return &core.CandidateMeeting{
		Title: "Q1 Planning",
		Start: start,
		End:   start.Add(90 * time.Minute),
	}
}

func TestCommitter_Commit(t *testing.T) {
	cal := &fakeCalendar{}
	c := New(cal)

	id, err := c.Commit(context.Background(), validMeeting(), "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if id != "evt-1" {
		t.Errorf("id = %q, want evt-1", id)
	}
	if len(cal.created) != 1 {
		t.Fatalf("CreateEvent calls = %d, want 1", len(cal.created))
	}
	if cal.created[0].CalendarID != "primary" {
		t.Errorf("CalendarID = %q, want primary", cal.created[0].CalendarID)
	}
}

func TestCommitter_Commit_InvalidMeeting(t *testing.T) {
	start := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		meeting *core.CandidateMeeting
	}{
		{"nil", nil},
		{"blank title", &core.CandidateMeeting{Title: "  ", Start: start, End: start.Add(time.Hour)}},
		{"end equals start", &core.CandidateMeeting{Title: "x", Start: start, End: start}},
		{"end before start", &core.CandidateMeeting{Title: "x", Start: start, End: start.Add(-time.Minute)}},
		{"missing start", &core.CandidateMeeting{Title: "x", End: start}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := &fakeCalendar{}
			_, err := New(cal).Commit(context.Background(), tt.meeting, "primary")
			if !errors.Is(err, core.ErrInvalidMeeting) {
				t.Errorf("err = %v, want ErrInvalidMeeting", err)
			}
			if len(cal.created) != 0 {
				t.Error("calendar contacted for invalid meeting")
			}
		})
	}
}

func TestCommitter_Commit_RemoteFailureIsDistinct(t *testing.T) {
	cal := &fakeCalendar{createErr: errors.New("quota exceeded")}

	_, err := New(cal).Commit(context.Background(), validMeeting(), "primary")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, core.ErrInvalidMeeting) {
		t.Error("remote failure reported as ErrInvalidMeeting")
	}
}

func TestBuildRequest(t *testing.T) {
	m := validMeeting()
	m.Start = m.Start.In(time.FixedZone("CET", 3600))
	m.Description = "Agenda"

	req := BuildRequest(m, "team")
	if req.Start.Location() != time.UTC || req.End.Location() != time.UTC {
		t.Error("times not normalized to UTC")
	}
	if req.Location != "" || req.Attendees != nil {
		t.Errorf("optional fields set: %+v", req)
	}
	if req.Summary != "Q1 Planning" || req.Description != "Agenda" || req.CalendarID != "team" {
		t.Errorf("req = %+v", req)
	}

	m.Location = "Room 4"
	m.Attendees = []string{"a@example.com"}
	req = BuildRequest(m, "team")
	if req.Location != "Room 4" || len(req.Attendees) != 1 {
		t.Errorf("optional fields missing: %+v", req)
	}
}

func TestCommitter_Exists(t *testing.T) {
	cal := &fakeCalendar{overlap: true}

	ok, err := New(cal).Exists(context.Background(), validMeeting(), "")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v", ok, err)
	}
	if cal.queries[0] != "primary|Q1 Planning" {
		t.Errorf("query = %q", cal.queries[0])
	}

	if _, err := New(cal).Exists(context.Background(), nil, ""); !errors.Is(err, core.ErrInvalidMeeting) {
		t.Errorf("err = %v, want ErrInvalidMeeting", err)
	}
}
