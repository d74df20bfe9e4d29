// Package mockservers provides httptest mock servers for external APIs.
package mockservers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
)

// GoogleMockServer serves an in-memory Gmail mailbox and Google Calendar.
// Point clients at it with option.WithEndpoint(URL()+"/").
type GoogleMockServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	messages []*gmail.Message
	events   map[string][]*calendar.Event // by calendar id
	inserts  int
	failList bool
}

// NewGoogleMockServer creates an empty mailbox and calendar
func NewGoogleMockServer(t *testing.T) *GoogleMockServer {
	t.Helper()

	mock := &GoogleMockServer{events: make(map[string][]*calendar.Event)}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.serve))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

// URL returns the mock server URL
func (m *GoogleMockServer) URL() string {
	return m.Server.URL
}

// AddMessage puts a plain-text email in the mailbox. Unread messages carry UNREAD.
func (m *GoogleMockServer) AddMessage(id, from, subject, body string, unread bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels := []string{"INBOX"}
	if unread {
		labels = append(labels, "UNREAD")
	}

	m.messages = append(m.messages, &gmail.Message{
		Id:           id,
		ThreadId:     "thread-" + id,
		LabelIds:     labels,
		InternalDate: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
			Body: &gmail.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte(body)),
			},
		},
	})
}

// FailList makes message listing fail with a non-retryable error
func (m *GoogleMockServer) FailList(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failList = fail
}

// Labels returns the current labels of a message
func (m *GoogleMockServer) Labels(id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg := m.find(id); msg != nil {
		return append([]string(nil), msg.LabelIds...)
	}
	return nil
}

// Events returns the events created on a calendar
func (m *GoogleMockServer) Events(calendarID string) []*calendar.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*calendar.Event(nil), m.events[calendarID]...)
}

// Inserts returns how many events were created across all calendars
func (m *GoogleMockServer) Inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

func (m *GoogleMockServer) find(id string) *gmail.Message {
	for _, msg := range m.messages {
		if msg.Id == id {
			return msg
		}
	}
	return nil
}

func (m *GoogleMockServer) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasPrefix(r.URL.Path, "/gmail/v1/users/me/messages"):
		m.serveGmail(w, r, strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages"))
	case strings.HasPrefix(r.URL.Path, "/calendars/"):
		m.serveCalendar(w, r, strings.TrimPrefix(r.URL.Path, "/calendars/"))
	default:
		notFound(w)
	}
}

func (m *GoogleMockServer) serveGmail(w http.ResponseWriter, r *http.Request, path string) {
	switch {
	case path == "" && r.Method == http.MethodGet:
		if m.failList {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(apiError(400, "failedPrecondition"))
			return
		}
		refs := make([]*gmail.Message, 0, len(m.messages))
		for _, msg := range m.messages {
			refs = append(refs, &gmail.Message{Id: msg.Id, ThreadId: msg.ThreadId})
		}
		json.NewEncoder(w).Encode(&gmail.ListMessagesResponse{
			Messages:           refs,
			ResultSizeEstimate: int64(len(refs)),
		})

	case strings.HasSuffix(path, "/modify") && r.Method == http.MethodPost:
		msg := m.find(strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/modify"))
		if msg == nil {
			notFound(w)
			return
		}
		var req gmail.ModifyMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		msg.LabelIds = removeLabels(msg.LabelIds, req.RemoveLabelIds)
		msg.LabelIds = append(msg.LabelIds, req.AddLabelIds...)
		json.NewEncoder(w).Encode(msg)

	case r.Method == http.MethodGet:
		msg := m.find(strings.TrimPrefix(path, "/"))
		if msg == nil {
			notFound(w)
			return
		}
		json.NewEncoder(w).Encode(msg)

	default:
		notFound(w)
	}
}

func (m *GoogleMockServer) serveCalendar(w http.ResponseWriter, r *http.Request, path string) {
	calendarID, rest, _ := strings.Cut(path, "/")
	if rest != "events" {
		notFound(w)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var ev calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(apiError(400, err.Error()))
			return
		}
		m.inserts++
		ev.Id = fmt.Sprintf("evt-%03d", m.inserts)
		ev.Status = "confirmed"
		ev.HtmlLink = "https://calendar.google.com/event?eid=" + ev.Id
		m.events[calendarID] = append(m.events[calendarID], &ev)
		json.NewEncoder(w).Encode(&ev)

	case http.MethodGet:
		json.NewEncoder(w).Encode(&calendar.Events{Items: m.events[calendarID]})

	default:
		notFound(w)
	}
}

func removeLabels(labels, remove []string) []string {
	out := labels[:0]
	for _, l := range labels {
		keep := true
		for _, r := range remove {
			if l == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, l)
		}
	}
	return out
}

func apiError(code int, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(apiError(404, "Not Found"))
}
