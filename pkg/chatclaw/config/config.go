// Package config loads and validates the chatclaw configuration from
// config.yaml, with ${ENV_VAR} expansion and .env loading via godotenv.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/executor"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/sanitize"
)

// envRefPattern matches ${VAR_NAME} references in config values.
var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the full application configuration.
type Config struct {
	// API configures the LLM provider.
	API APIConfig `yaml:"api"`

	// Workspace configures the per-chat workspace collection.
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Executor bounds shell command execution.
	Executor executor.Config `yaml:"executor"`

	// Sanitizer configures output sanitization.
	Sanitizer sanitize.Config `yaml:"sanitizer"`

	// Database configures the SQLite store.
	Database database.Config `yaml:"database"`

	// Telegram configures the Telegram channel.
	Telegram TelegramConfig `yaml:"telegram"`

	// Discord configures the Discord channel.
	Discord DiscordConfig `yaml:"discord"`

	// Access restricts who may talk to the assistant.
	Access AccessConfig `yaml:"access"`

	// Agent tunes the assistant loop.
	Agent AgentConfig `yaml:"agent"`
}

// APIConfig holds LLM provider settings.
type APIConfig struct {
	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the provider. Prefer the vault or
	// the OS keyring over putting it here in plaintext.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier sent with each request.
	Model string `yaml:"model"`

	// MaxTokens caps the response length.
	MaxTokens int `yaml:"max_tokens"`
}

// WorkspaceConfig holds workspace collection settings.
type WorkspaceConfig struct {
	// Root is the directory holding all per-chat workspaces.
	Root string `yaml:"root"`

	// SessionTTL is how long idle conversations keep their history.
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// TelegramConfig holds Telegram channel settings.
type TelegramConfig struct {
	Enabled bool `yaml:"enabled"`

	// Token is the bot token from BotFather.
	Token string `yaml:"token"`
}

// DiscordConfig holds Discord channel settings.
type DiscordConfig struct {
	Enabled bool `yaml:"enabled"`

	// Token is the bot token from the Discord developer portal.
	Token string `yaml:"token"`
}

// AccessConfig restricts who the assistant responds to.
type AccessConfig struct {
	// AllowedUsers lists user ids permitted to talk to the bot, in
	// "channel:id" form (e.g. "telegram:12345"). Empty means everyone.
	AllowedUsers []string `yaml:"allowed_users"`
}

// AgentConfig tunes the assistant loop.
type AgentConfig struct {
	// SystemPrompt overrides the built-in system prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// BlockedThreshold is the consecutive-blocked limit per turn.
	BlockedThreshold int `yaml:"blocked_threshold"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Workspace: WorkspaceConfig{
			Root:       "/workspace",
			SessionTTL: 4 * time.Hour,
		},
		Executor:  executor.DefaultConfig(),
		Sanitizer: sanitize.DefaultConfig(),
		Database:  database.DefaultConfig(),
	}
}

// Load reads configuration from path, applying defaults for anything
// unset. A missing file yields the defaults. A .env file in the
// working directory is loaded first so ${VAR} references resolve.
func Load(path string) (Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}

	expanded := envRefPattern.ReplaceAllStringFunc(string(raw), func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return ref
	})

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Workspace.Root == "" {
		return fmt.Errorf("workspace.root must be set")
	}
	if c.API.Model == "" {
		return fmt.Errorf("api.model must be set")
	}
	if c.Workspace.SessionTTL < 0 {
		return fmt.Errorf("workspace.session_ttl must not be negative")
	}
	return nil
}

// Save writes the configuration to path with restrictive permissions.
// Secret fields should hold ${VAR} references, not real values.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %q: %w", path, err)
	}
	return nil
}

// IsEnvReference reports whether a value is an unresolved ${VAR}
// reference, meaning the environment variable was not set.
func IsEnvReference(value string) bool {
	return envRefPattern.MatchString(value)
}
