package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// Client Tests (Anthropic)
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != "https://api.anthropic.com" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "https://api.anthropic.com")
	}
	if cfg.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q, want %q", cfg.Model, "claude-sonnet-4-20250514")
	}
	if cfg.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", cfg.MaxTokens)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, 60*time.Second)
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantURL   string
		wantModel string
	}{
		{
			name:      "default values",
			cfg:       Config{APIKey: "test-key"},
			wantURL:   "https://api.anthropic.com",
			wantModel: "claude-sonnet-4-20250514",
		},
		{
			name: "custom values",
			cfg: Config{
				APIKey:  "test-key",
				BaseURL: "https://custom.api.com",
				Model:   "claude-3-opus",
			},
			wantURL:   "https://custom.api.com",
			wantModel: "claude-3-opus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.cfg)
			if client.baseURL != tt.wantURL {
				t.Errorf("baseURL = %q, want %q", client.baseURL, tt.wantURL)
			}
			if client.Model() != tt.wantModel {
				t.Errorf("model = %q, want %q", client.Model(), tt.wantModel)
			}
			if client.maxTokens != 1024 {
				t.Errorf("maxTokens = %d, want 1024", client.maxTokens)
			}
		})
	}
}

func TestClient_IsConfigured(t *testing.T) {
	if NewClient(Config{}).IsConfigured() {
		t.Error("IsConfigured() = true without API key")
	}
	if !NewClient(Config{APIKey: "k"}).IsConfigured() {
		t.Error("IsConfigured() = false with API key")
	}
}

func TestClient_Complete(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		response   interface{}
		wantErr    bool
	}{
		{
			name:       "successful response",
			statusCode: http.StatusOK,
			response: Response{
				ID:   "msg_123",
				Type: "message",
				Role: "assistant",
				Content: []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				}{{Type: "text", Text: "{}"}},
			},
		},
		{
			name:       "API error",
			statusCode: http.StatusUnauthorized,
			response:   map[string]string{"error": "invalid api key"},
			wantErr:    true,
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			response:   map[string]string{"error": "internal error"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/messages" {
					t.Errorf("path = %q, want /v1/messages", r.URL.Path)
				}
				if r.Header.Get("x-api-key") != "test-key" {
					t.Errorf("x-api-key = %q, want test-key", r.Header.Get("x-api-key"))
				}
				if r.Header.Get("anthropic-version") != "2023-06-01" {
					t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
				}
				w.WriteHeader(tt.statusCode)
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
			resp, err := client.Complete(context.Background(), Request{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.ID != "msg_123" {
				t.Errorf("ID = %q, want msg_123", resp.ID)
			}
		})
	}
}

func TestClient_Generate(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"{\"title\":\"Sync\"}"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	text, err := client.Generate(context.Background(), "extract this")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if text != `{"title":"Sync"}` {
		t.Errorf("text = %q", text)
	}
	if got.System != SystemPrompt {
		t.Errorf("System = %q, want %q", got.System, SystemPrompt)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want 1024", got.MaxTokens)
	}
	if got.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "extract this" {
		t.Errorf("Messages = %+v", got.Messages)
	}
}

func TestClient_Chat_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"msg_1","content":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	if _, err := client.Chat(context.Background(), "sys", "user"); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestClient_Chat_SkipsNonTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"msg_1","content":[{"type":"thinking","text":""},{"type":"text","text":"answer"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	text, err := client.Chat(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q, want answer", text)
	}
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := client.Generate(ctx, "hi"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
