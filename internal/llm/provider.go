package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
)

// Generator turns a prompt into a response. One variant exists per backend.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider names a text-generation backend
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderOllama    Provider = "ollama"
)

// ProviderConfig selects and configures one backend
type ProviderConfig struct {
	Provider   Provider
	Model      string
	APIKey     string
	BaseURL    string // Azure endpoint or Ollama host; optional for the others
	Deployment string // Azure only
	APIVersion string // Azure only
	Timeout    time.Duration
}

// ParseProvider normalizes a configured provider name
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "openai":
		return ProviderOpenAI, nil
	case "azure", "azure-openai":
		return ProviderAzure, nil
	case "ollama":
		return ProviderOllama, nil
	default:
		return "", fmt.Errorf("%w: unsupported LLM provider %q", core.ErrInvalidConfig, s)
	}
}

// NewGenerator builds the backend named by cfg.Provider
func NewGenerator(cfg ProviderConfig) (Generator, error) {
	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}

	switch provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: anthropic requires an API key", core.ErrInvalidConfig)
		}
		return NewClient(Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai requires an API key", core.ErrInvalidConfig)
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil

	case ProviderAzure:
		deployment := cfg.Deployment
		if deployment == "" {
			deployment = cfg.Model
		}
		client := NewAzureClient(AzureConfig{
			Endpoint:   cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Deployment: deployment,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		})
		if !client.IsConfigured() {
			return nil, fmt.Errorf("%w: azure requires endpoint, API key and deployment", core.ErrInvalidConfig)
		}
		return client, nil

	default:
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), nil
	}
}
