package mockservers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// AnthropicMockServer answers /v1/messages with text chosen by Respond
type AnthropicMockServer struct {
	Server *httptest.Server

	// Respond maps the user prompt to the completion text
	Respond func(prompt string) string

	mu    sync.Mutex
	calls int
}

// NewAnthropicMockServer creates a server that replies "{}" until Respond is set
func NewAnthropicMockServer(t *testing.T) *AnthropicMockServer {
	t.Helper()

	mock := &AnthropicMockServer{
		Respond: func(string) string { return "{}" },
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}

		mock.mu.Lock()
		mock.calls++
		respond := mock.Respond
		mock.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":   "msg_test",
			"type": "message",
			"role": "assistant",
			"content": []map[string]string{
				{"type": "text", "text": respond(prompt)},
			},
			"stop_reason": "end_turn",
		})
	}))

	t.Cleanup(func() {
		mock.Server.Close()
	})

	return mock
}

// URL returns the mock server URL
func (m *AnthropicMockServer) URL() string {
	return m.Server.URL
}

// Calls returns how many completions were requested
func (m *AnthropicMockServer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
