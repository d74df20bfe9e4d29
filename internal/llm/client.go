// Package llm provides the text-generation backends used for meeting extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// SystemPrompt frames every generation request
const SystemPrompt = "You are a meeting information extraction assistant."

const anthropicVersion = "2023-06-01"

// Client generates text through the Anthropic Messages API
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Config configures the Anthropic backend
type Config struct {
	APIKey    string
	BaseURL   string // overridden in tests
	Model     string
	MaxTokens int // reply budget; extraction replies are small
	Timeout   time.Duration
}

// DefaultConfig reads the key from ANTHROPIC_API_KEY
func DefaultConfig() Config {
	return Config{
		APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		BaseURL:   "https://api.anthropic.com",
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 1024,
		Timeout:   60 * time.Second,
	}
}

// NewClient fills unset Config fields with the DefaultConfig values
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Message is one turn sent to the model
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is the body of POST /v1/messages
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Response is the subset of the Messages reply the agent reads
type Response struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete posts req and decodes the reply. Non-200 statuses are returned
// as errors carrying the response body.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.maxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, string(respBody))
	}

	var llmResp Response
	if err := json.Unmarshal(respBody, &llmResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	return &llmResp, nil
}

// Chat sends one user message under system and returns the first text block
func (c *Client) Chat(ctx context.Context, system, userMessage string) (string, error) {
	resp, err := c.Complete(ctx, Request{
		System: system,
		Messages: []Message{
			{Role: "user", Content: userMessage},
		},
	})
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: no text in response (stop_reason %q)", resp.StopReason)
}

// Generate answers an extraction prompt under SystemPrompt
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, SystemPrompt, prompt)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

// IsConfigured reports whether a key is present
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Model returns the model name sent with each request
func (c *Client) Model() string {
	return c.model
}
