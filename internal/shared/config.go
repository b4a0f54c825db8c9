package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Feed     FeedConfig     `toml:"feed"`
	Chat     ChatConfig     `toml:"chat"`
	Database DatabaseConfig `toml:"database"`
	Export   ExportConfig   `toml:"export"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig points the client at the AutoEhHunter web API.
type ServerConfig struct {
	BaseURL        string `toml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
	UILang         string `toml:"ui_lang" validate:"required"`
}

// AuthConfig holds the default login name.
type AuthConfig struct {
	Username string `toml:"username"`
}

// FeedConfig tunes pagination and recommend feedback.
type FeedConfig struct {
	PageSize             int  `toml:"page_size" validate:"min=1,max=200"`
	MaxDepth             int  `toml:"max_depth" validate:"min=1,max=32"`
	DislikeDelayMS       int  `toml:"dislike_delay_ms" validate:"gte=0"`
	ImpressionDebounceMS int  `toml:"impression_debounce_ms" validate:"gte=0"`
	TouchDedupeMS        int  `toml:"touch_dedupe_ms" validate:"gte=0"`
	SearchLimit          int  `toml:"search_limit" validate:"min=1,max=300"`
	UseLLM               bool `toml:"use_llm"`
}

// ChatConfig holds defaults for outgoing chat messages.
type ChatConfig struct {
	Mode   string `toml:"mode" validate:"required"`
	Intent string `toml:"intent" validate:"oneof=auto chat profile search report recommendation"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ExportConfig controls the feed export walker.
type ExportConfig struct {
	RateLimit float64 `toml:"rate_limit" validate:"gte=0"`
	MaxPages  int     `toml:"max_pages" validate:"gte=0"`
	Format    string  `toml:"format" validate:"oneof=json csv markdown txt"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	File  string `toml:"file"`
}

// Timeout returns the HTTP timeout; zero disables it.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DislikeDelay returns the configured visual delay before a disliked item is removed.
func (f FeedConfig) DislikeDelay() time.Duration {
	return time.Duration(f.DislikeDelayMS) * time.Millisecond
}

// ImpressionDebounce returns the quiet window before queued impressions are flushed.
func (f FeedConfig) ImpressionDebounce() time.Duration {
	return time.Duration(f.ImpressionDebounceMS) * time.Millisecond
}

// TouchDedupe returns the per-item window in which repeated opens are ignored.
func (f FeedConfig) TouchDedupe() time.Duration {
	return time.Duration(f.TouchDedupeMS) * time.Millisecond
}

// LogLevel parses [LogConfig.Level], falling back to info.
func (l LogConfig) LogLevel() log.Level {
	lvl, err := log.ParseLevel(l.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// LoadConfig reads, parses and validates a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	if err := Validate(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
