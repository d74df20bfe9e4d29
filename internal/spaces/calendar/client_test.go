package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// newTestClient points a Client at an httptest server
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// ============================================================================
// CreateEvent Tests
// ============================================================================

func TestClient_CreateEvent(t *testing.T) {
	var got calendar.Event
	var gotPath, gotSendUpdates string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotSendUpdates = r.URL.Query().Get("sendUpdates")
		json.NewDecoder(r.Body).Decode(&got)

		got.Id = "evt-123"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(got)
	})

	start := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	ev, err := client.CreateEvent(context.Background(), CreateEventRequest{
		Summary:     "Q1 Planning",
		Description: "Plan the quarter",
		Location:    "Room 4",
		Start:       start,
		End:         start.Add(90 * time.Minute),
		Attendees:   []string{"a@example.com", "b@example.com"},
		CalendarID:  "team@group.calendar.google.com",
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if gotPath != "/calendars/team@group.calendar.google.com/events" {
		t.Errorf("path = %q", gotPath)
	}
	if gotSendUpdates != "all" {
		t.Errorf("sendUpdates = %q, want all", gotSendUpdates)
	}
	if got.Start.DateTime != "2025-03-05T14:00:00Z" || got.Start.TimeZone != "UTC" {
		t.Errorf("start = %+v", got.Start)
	}
	if got.End.DateTime != "2025-03-05T15:30:00Z" || got.End.TimeZone != "UTC" {
		t.Errorf("end = %+v", got.End)
	}
	if got.Location != "Room 4" {
		t.Errorf("location = %q", got.Location)
	}
	if len(got.Attendees) != 2 || got.Attendees[0].Email != "a@example.com" {
		t.Errorf("attendees = %+v", got.Attendees)
	}

	if ev.ID != "evt-123" {
		t.Errorf("ID = %q, want evt-123", ev.ID)
	}
	if !ev.Start.Equal(start) {
		t.Errorf("Start = %v, want %v", ev.Start, start)
	}
}

func TestClient_CreateEvent_OptionalFieldsOmitted(t *testing.T) {
	var raw map[string]interface{}
	var gotPath string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"id":"evt-1"}`))
	})

	// Local times are normalized to UTC
	loc := time.FixedZone("EST", -5*3600)
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, loc)
	_, err := client.CreateEvent(context.Background(), CreateEventRequest{
		Summary: "Sync",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if gotPath != "/calendars/primary/events" {
		t.Errorf("path = %q, want default calendar", gotPath)
	}
	if _, ok := raw["location"]; ok {
		t.Error("location present in payload")
	}
	if _, ok := raw["attendees"]; ok {
		t.Error("attendees present in payload")
	}
	startField := raw["start"].(map[string]interface{})
	if startField["dateTime"] != "2025-01-01T14:00:00Z" {
		t.Errorf("start.dateTime = %v", startField["dateTime"])
	}
}

func TestClient_CreateEvent_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	})

	_, err := client.CreateEvent(context.Background(), CreateEventRequest{
		Summary: "x",
		Start:   time.Now(),
		End:     time.Now().Add(time.Hour),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

// ============================================================================
// Overlap Tests
// ============================================================================

func TestClient_HasOverlappingEvent(t *testing.T) {
	tests := []struct {
		name  string
		items string
		want  bool
	}{
		{"no events", `[]`, false},
		{"same title", `[{"id":"1","summary":"q1 planning","status":"confirmed"}]`, true},
		{"different title", `[{"id":"1","summary":"Q1 Planning prep","status":"confirmed"}]`, false},
		{"cancelled match", `[{"id":"1","summary":"Q1 Planning","status":"cancelled"}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var query map[string]string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				query = map[string]string{
					"timeMin":      q.Get("timeMin"),
					"timeMax":      q.Get("timeMax"),
					"q":            q.Get("q"),
					"singleEvents": q.Get("singleEvents"),
				}
				w.Write([]byte(`{"items":` + tt.items + `}`))
			})

			start := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
			got, err := client.HasOverlappingEvent(context.Background(), "", "Q1 Planning", start, start.Add(90*time.Minute))
			if err != nil {
				t.Fatalf("HasOverlappingEvent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("HasOverlappingEvent() = %v, want %v", got, tt.want)
			}

			if query["timeMin"] != "2025-03-05T14:00:00Z" || query["timeMax"] != "2025-03-05T15:30:00Z" {
				t.Errorf("time range = %s..%s", query["timeMin"], query["timeMax"])
			}
			if query["q"] != "Q1 Planning" || query["singleEvents"] != "true" {
				t.Errorf("query = %v", query)
			}
		})
	}
}

func TestConvertEvents_AllDay(t *testing.T) {
	events := convertEvents([]*calendar.Event{{
		Id:        "1",
		Start:     &calendar.EventDateTime{Date: "2025-03-05"},
		End:       &calendar.EventDateTime{Date: "2025-03-06"},
		Organizer: &calendar.EventOrganizer{Email: "boss@example.com"},
	}}, "primary")

	if len(events) != 1 {
		t.Fatalf("len = %d, want 1", len(events))
	}
	if !events[0].AllDay {
		t.Error("AllDay = false, want true")
	}
	if events[0].Organizer != "boss@example.com" {
		t.Errorf("Organizer = %q", events[0].Organizer)
	}
}
