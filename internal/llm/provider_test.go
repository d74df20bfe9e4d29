package llm

import (
	"errors"
	"testing"

	"github.com/quantumlife/meetingagent/internal/core"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"anthropic", ProviderAnthropic, false},
		{"Claude", ProviderAnthropic, false},
		{"openai", ProviderOpenAI, false},
		{" azure ", ProviderAzure, false},
		{"azure-openai", ProviderAzure, false},
		{"ollama", ProviderOllama, false},
		{"gemini", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidConfig) {
					t.Errorf("err = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseProvider(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		check   func(Generator) bool
		wantErr bool
	}{
		{
			name:  "anthropic",
			cfg:   ProviderConfig{Provider: "anthropic", APIKey: "k"},
			check: func(g Generator) bool { _, ok := g.(*Client); return ok },
		},
		{
			name:  "openai",
			cfg:   ProviderConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o"},
			check: func(g Generator) bool { c, ok := g.(*OpenAIClient); return ok && c.model == "gpt-4o" },
		},
		{
			name: "azure uses model as deployment",
			cfg:  ProviderConfig{Provider: "azure", APIKey: "k", BaseURL: "https://x", Model: "gpt-4o"},
			check: func(g Generator) bool {
				c, ok := g.(*AzureClient)
				return ok && c.GetDeployment() == "gpt-4o"
			},
		},
		{
			name:  "ollama needs no key",
			cfg:   ProviderConfig{Provider: "ollama"},
			check: func(g Generator) bool { _, ok := g.(*OllamaClient); return ok },
		},
		{name: "anthropic without key", cfg: ProviderConfig{Provider: "anthropic"}, wantErr: true},
		{name: "openai without key", cfg: ProviderConfig{Provider: "openai"}, wantErr: true},
		{name: "azure without endpoint", cfg: ProviderConfig{Provider: "azure", APIKey: "k", Model: "m"}, wantErr: true},
		{name: "unknown provider", cfg: ProviderConfig{Provider: "bard"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator(tt.cfg)
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvalidConfig) {
					t.Errorf("err = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGenerator() error = %v", err)
			}
			if !tt.check(g) {
				t.Errorf("NewGenerator() returned %T", g)
			}
		})
	}
}
