package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// AzureClient handles Azure OpenAI API calls
type AzureClient struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
}

// AzureConfig for Azure OpenAI client
type AzureConfig struct {
	Endpoint   string        // Azure OpenAI endpoint
	APIKey     string        // Azure API key
	Deployment string        // Deployment name (e.g., "gpt-4o")
	APIVersion string        // API version (e.g., "2024-10-21")
	Timeout    time.Duration // Request timeout
}

// DefaultAzureConfig returns config from environment
func DefaultAzureConfig() AzureConfig {
	return AzureConfig{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		Timeout:    60 * time.Second,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// NewAzureClient creates a new Azure OpenAI client
func NewAzureClient(cfg AzureConfig) *AzureClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-10-21"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &AzureClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Complete sends a chat completion request to Azure OpenAI
func (c *AzureClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	// The deployment selects the model
	req.Model = ""

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	return doChat(c.httpClient, httpReq, "Azure")
}

// Chat is a convenience method for simple chat
func (c *AzureClient) Chat(ctx context.Context, system, userMessage string) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: userMessage},
	}

	resp, err := c.Complete(ctx, ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from Azure OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}

// Generate implements Generator
func (c *AzureClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Chat(ctx, SystemPrompt, prompt)
}

// IsConfigured checks if Azure OpenAI is properly configured
func (c *AzureClient) IsConfigured() bool {
	return c.endpoint != "" && c.apiKey != "" && c.deployment != ""
}

// GetDeployment returns the deployment name
func (c *AzureClient) GetDeployment() string {
	return c.deployment
}
