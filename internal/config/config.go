// Package config handles meeting agent configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/llm"
	"github.com/quantumlife/meetingagent/internal/logging"
)

// DefaultPath is used when no --config flag is given
const DefaultPath = "config.yaml"

// Config holds all configuration
type Config struct {
	Gmail    GmailConfig    `yaml:"gmail"`
	Calendar CalendarConfig `yaml:"calendar"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	Storage  StorageConfig  `yaml:"storage"`
	Google   GoogleConfig   `yaml:"google"`
	Logging  LoggingConfig  `yaml:"logging"`
	API      APIConfig      `yaml:"api"`
}

// GmailConfig selects which emails are considered
type GmailConfig struct {
	Query   string          `yaml:"query"` // Gmail search syntax, narrows the fetch server-side
	Filters core.FilterRule `yaml:"filters"`
}

// CalendarConfig for event creation
type CalendarConfig struct {
	CalendarID             string `yaml:"calendar_id"`
	DefaultDurationMinutes int    `yaml:"default_duration_minutes"`
}

// LLMConfig selects the extraction backend
type LLMConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Deployment     string `yaml:"deployment"`
	APIVersion     string `yaml:"api_version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AgentConfig controls the run cycle
type AgentConfig struct {
	ScheduleIntervalMinutes int  `yaml:"schedule_interval_minutes"`
	MaxEmailsPerRun         int  `yaml:"max_emails_per_run"`
	MarkAsRead              bool `yaml:"mark_as_read_after_processing"`
	CheckDuplicates         bool `yaml:"check_duplicates"`
}

// StorageConfig for the ledger database
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// GoogleConfig for OAuth
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
}

// LoggingConfig for the logger
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"` // empty = stdout
}

// APIConfig for the status server
type APIConfig struct {
	Listen string `yaml:"listen"` // empty disables the server
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Gmail: GmailConfig{
			Filters: core.FilterRule{ReadState: core.ReadAny},
		},
		Calendar: CalendarConfig{
			CalendarID:             "primary",
			DefaultDurationMinutes: 60,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4",
			TimeoutSeconds: 60,
		},
		Agent: AgentConfig{
			ScheduleIntervalMinutes: 30,
			MaxEmailsPerRun:         50,
			MarkAsRead:              true,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join("data", "processed_emails.db"),
		},
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       filepath.Join("data", "google_token.json"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults. Unlike an absent
// optional setting, a missing file is an error: the agent needs at least
// LLM credentials to do anything useful.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: configuration file not found: %s", core.ErrInvalidConfig, path)
		}
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML config, substituting ${VAR} values from the environment
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	if root.Kind == 0 {
		return cfg, nil // empty document
	}

	substituteEnv(&root)

	if err := root.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// substituteEnv replaces scalar values of the exact form ${VAR}.
// Unset variables leave the literal in place.
func substituteEnv(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode {
		node.Value = expandValue(node.Value)
		return
	}
	for _, child := range node.Content {
		substituteEnv(child)
	}
}

func expandValue(v string) string {
	if !strings.HasPrefix(v, "${") || !strings.HasSuffix(v, "}") {
		return v
	}
	if val, ok := os.LookupEnv(v[2 : len(v)-1]); ok {
		return val
	}
	return v
}

// Validate checks the values the agent cannot run without
func (c *Config) Validate() error {
	var problems []string

	if _, err := llm.ParseProvider(c.LLM.Provider); err != nil {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.Calendar.DefaultDurationMinutes <= 0 {
		problems = append(problems, "calendar.default_duration_minutes must be positive")
	}
	if c.Agent.ScheduleIntervalMinutes <= 0 {
		problems = append(problems, "agent.schedule_interval_minutes must be positive")
	}
	if c.Agent.MaxEmailsPerRun <= 0 {
		problems = append(problems, "agent.max_emails_per_run must be positive")
	}
	switch c.Gmail.Filters.ReadState {
	case "", core.ReadAny, core.ReadOnly, core.UnreadOnly:
	default:
		problems = append(problems, fmt.Sprintf("gmail.filters.read_status %q must be any, read or unread", c.Gmail.Filters.ReadState))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, fmt.Sprintf("logging.level %q is not a level", c.Logging.Level))
	}
	if c.Storage.DatabasePath == "" {
		problems = append(problems, "storage.database_path is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", core.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ProviderConfig maps the llm section onto the generator factory
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:   llm.Provider(c.LLM.Provider),
		Model:      c.LLM.Model,
		APIKey:     c.LLM.APIKey,
		BaseURL:    c.LLM.BaseURL,
		Deployment: c.LLM.Deployment,
		APIVersion: c.LLM.APIVersion,
		Timeout:    time.Duration(c.LLM.TimeoutSeconds) * time.Second,
	}
}

// ScheduleInterval returns the agent interval as a duration
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Agent.ScheduleIntervalMinutes) * time.Minute
}
