// Package config loads the SessionMesh runtime configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/sessionmesh/internal/util"
)

// Config is the root configuration document.
type Config struct {
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Messages   MessagesConfig   `yaml:"messages"`
	Session    SessionConfig    `yaml:"session"`
	Backends   BackendsConfig   `yaml:"backends"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// VocabularyConfig holds the summon and dismiss phrase lists.
type VocabularyConfig struct {
	Summon  SummonConfig `yaml:"summon"`
	Dismiss []string     `yaml:"dismiss"`
}

// SummonConfig holds summon phrases per mode.
type SummonConfig struct {
	Normal []string `yaml:"normal"`
	Code   []string `yaml:"code"`
}

// MessagesConfig holds the fixed bot messages. Entries may use template
// fields {{.user}} and {{.mode}}.
type MessagesConfig struct {
	Greetings  []string `yaml:"greetings"`
	Farewell   string   `yaml:"farewell"`
	Timeout    string   `yaml:"timeout"`
	Failure    string   `yaml:"failure"`
	Processing string   `yaml:"processing,omitempty"`
}

// SessionConfig holds conversation loop parameters.
type SessionConfig struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	CommandPrefix    string        `yaml:"command_prefix"`
	CodeTag          string        `yaml:"code_tag"`
	MaxMessageLength int           `yaml:"max_message_length"`
	InboxSize        int           `yaml:"inbox_size"`
}

// BackendsConfig holds one backend per role.
type BackendsConfig struct {
	Normal  BackendConfig `yaml:"normal"`
	Code    BackendConfig `yaml:"code"`
	Summary BackendConfig `yaml:"summary"`
}

// BackendConfig describes a model backend.
type BackendConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Persona     string  `yaml:"persona,omitempty"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Window      int     `yaml:"window,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
}

// DispatchConfig bounds backend retries.
type DispatchConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// StoreConfig selects the transcript backend.
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path,omitempty"`
	Secret    string `yaml:"secret,omitempty"`
	SecretEnv string `yaml:"secret_env,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Default returns a configuration that only lacks secrets.
func Default() *Config {
	return &Config{
		Vocabulary: VocabularyConfig{
			Summon: SummonConfig{
				Normal: []string{"hey abby", "hi abby", "hello abby", "ok abby"},
				Code:   []string{"code abby", "hey abby code"},
			},
			Dismiss: []string{"bye abby", "bye", "goodbye", "thanks abby", "stop"},
		},
		Messages: MessagesConfig{
			Greetings: []string{
				"Hey {{.user}}! What's on your mind?",
				"Hi there, I'm listening.",
				"Hello! How can I help?",
			},
			Farewell: "Bye! Talk to you later.",
			Timeout:  "I haven't heard from you in a while, so I'm heading out. Summon me again anytime.",
			Failure:  "Sorry, something went wrong on my side. Please summon me again.",
		},
		Session: SessionConfig{
			IdleTimeout:      60 * time.Second,
			CommandPrefix:    "!",
			CodeTag:          "[code]",
			MaxMessageLength: 2000,
			InboxSize:        16,
		},
		Backends: BackendsConfig{
			Normal: BackendConfig{
				Provider:    ProviderOpenAI,
				Model:       "gpt-4o-mini",
				Temperature: 0.7,
				MaxTokens:   1024,
				APIKeyEnv:   "OPENAI_API_KEY",
			},
			Code: BackendConfig{
				Provider:    ProviderAnthropic,
				Model:       "claude-3-5-sonnet-20241022",
				Temperature: 0.2,
				MaxTokens:   2048,
				APIKeyEnv:   "ANTHROPIC_API_KEY",
			},
			Summary: BackendConfig{
				Provider:    ProviderOpenAI,
				Model:       "gpt-4o-mini",
				Temperature: 0.3,
				MaxTokens:   256,
				APIKeyEnv:   "OPENAI_API_KEY",
			},
		},
		Dispatch: DispatchConfig{MaxAttempts: 1},
		Store: StoreConfig{
			Driver:    DriverMemory,
			SecretEnv: "SESSIONMESH_SECRET",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML file over Default and resolves secrets from the
// environment.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and resolves secrets from the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// ResolveEnv fills secrets from the *_env variables when they are not set
// inline.
func (c *Config) ResolveEnv() {
	for _, b := range []*BackendConfig{&c.Backends.Normal, &c.Backends.Code, &c.Backends.Summary} {
		if b.APIKey == "" && b.APIKeyEnv != "" {
			b.APIKey = os.Getenv(b.APIKeyEnv)
		}
	}
	if c.Store.Secret == "" && c.Store.SecretEnv != "" {
		c.Store.Secret = os.Getenv(c.Store.SecretEnv)
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if !hasPhrase(c.Vocabulary.Summon.Normal) && !hasPhrase(c.Vocabulary.Summon.Code) {
		errs = append(errs, errors.New("vocabulary.summon needs at least one phrase"))
	}
	if !hasPhrase(c.Vocabulary.Dismiss) {
		errs = append(errs, errors.New("vocabulary.dismiss needs at least one phrase"))
	}
	for _, d := range c.Vocabulary.Dismiss {
		for _, s := range append(append([]string{}, c.Vocabulary.Summon.Normal...), c.Vocabulary.Summon.Code...) {
			if strings.EqualFold(strings.TrimSpace(d), strings.TrimSpace(s)) && strings.TrimSpace(d) != "" {
				errs = append(errs, fmt.Errorf("vocabulary phrase %q is both summon and dismiss", d))
			}
		}
	}

	if len(c.Messages.Greetings) == 0 {
		errs = append(errs, errors.New("messages.greetings needs at least one entry"))
	}
	for name, msg := range map[string]string{
		"farewell":   c.Messages.Farewell,
		"timeout":    c.Messages.Timeout,
		"failure":    c.Messages.Failure,
		"processing": c.Messages.Processing,
	} {
		if name != "processing" && msg == "" {
			errs = append(errs, fmt.Errorf("messages.%s is required", name))
		}
		if err := util.ValidateTemplate(msg, util.FieldUser, util.FieldMode); err != nil {
			errs = append(errs, fmt.Errorf("messages.%s: %w", name, err))
		}
	}
	for i, g := range c.Messages.Greetings {
		if err := util.ValidateTemplate(g, util.FieldUser, util.FieldMode); err != nil {
			errs = append(errs, fmt.Errorf("messages.greetings[%d]: %w", i, err))
		}
	}

	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("session.idle_timeout must be positive"))
	}
	if c.Session.MaxMessageLength < 2 {
		errs = append(errs, errors.New("session.max_message_length must be at least 2"))
	}
	if c.Session.InboxSize < 1 {
		errs = append(errs, errors.New("session.inbox_size must be at least 1"))
	}

	for name, b := range map[string]BackendConfig{
		"normal":  c.Backends.Normal,
		"code":    c.Backends.Code,
		"summary": c.Backends.Summary,
	} {
		switch b.Provider {
		case ProviderOpenAI, ProviderAnthropic:
		default:
			errs = append(errs, fmt.Errorf("backends.%s.provider %q is not supported", name, b.Provider))
		}
		if b.APIKey == "" {
			errs = append(errs, fmt.Errorf("backends.%s requires api_key or a set api_key_env (%s)", name, b.APIKeyEnv))
		}
	}

	if c.Dispatch.MaxAttempts < 1 {
		errs = append(errs, errors.New("dispatch.max_attempts must be at least 1"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}
	if len(c.Store.Secret) < 32 {
		errs = append(errs, fmt.Errorf("store secret must be at least 32 bytes (set %s)", c.Store.SecretEnv))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SaveConfig writes cfg as YAML. Resolved secrets are not written.
func SaveConfig(cfg *Config, filePath string) error {
	out := *cfg
	out.Backends.Normal.APIKey = ""
	out.Backends.Code.APIKey = ""
	out.Backends.Summary.APIKey = ""
	out.Store.Secret = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func hasPhrase(list []string) bool {
	for _, p := range list {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
