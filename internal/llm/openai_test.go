package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// =============================================================================
// OpenAI Client Tests
// =============================================================================

func TestNewOpenAIClient_Defaults(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k"})

	if client.baseURL != "https://api.openai.com" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
	if client.model != "gpt-4" {
		t.Errorf("model = %q, want gpt-4", client.model)
	}
	if !client.IsConfigured() {
		t.Error("IsConfigured() = false with API key")
	}
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"answer"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL})
	text, err := client.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "answer" {
		t.Errorf("text = %q, want answer", text)
	}

	if got["model"] != "gpt-4" {
		t.Errorf("model = %v", got["model"])
	}
	// temperature 0 must be sent explicitly
	if temp, ok := got["temperature"]; !ok || temp.(float64) != 0 {
		t.Errorf("temperature = %v, present = %v", temp, ok)
	}
	msgs := got["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	first := msgs[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != SystemPrompt {
		t.Errorf("system message = %v", first)
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"malformed body", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
			if _, err := client.Generate(context.Background(), "p"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
