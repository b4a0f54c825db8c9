package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./aehx.db" {
			t.Errorf("expected database path ./aehx.db, got %s", config.Database.Path)
		}
		if config.Server.BaseURL != "http://127.0.0.1:8501/api" {
			t.Errorf("unexpected base url %s", config.Server.BaseURL)
		}
		if config.Feed.PageSize != 24 {
			t.Errorf("expected page size 24, got %d", config.Feed.PageSize)
		}
		if config.Feed.MaxDepth != 8 {
			t.Errorf("expected max depth 8, got %d", config.Feed.MaxDepth)
		}
		if config.Feed.DislikeDelay() != 450*time.Millisecond {
			t.Errorf("expected 450ms dislike delay, got %s", config.Feed.DislikeDelay())
		}
		if config.Feed.ImpressionDebounce() != 2*time.Second {
			t.Errorf("expected 2s debounce, got %s", config.Feed.ImpressionDebounce())
		}
		if config.Feed.TouchDedupe() != 1500*time.Millisecond {
			t.Errorf("expected 1.5s touch dedupe, got %s", config.Feed.TouchDedupe())
		}
		if config.Chat.Intent != "auto" {
			t.Errorf("expected intent auto, got %s", config.Chat.Intent)
		}
		if err := Validate(config); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[server]
base_url = "https://aeh.example.com/api"
ui_lang = "zh"

[feed]
page_size = 12

[chat]
intent = "search"

[database]
path = "/custom/path.db"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.BaseURL != "https://aeh.example.com/api" {
			t.Errorf("unexpected base url %s", config.Server.BaseURL)
		}
		if config.Feed.PageSize != 12 {
			t.Errorf("expected page size 12, got %d", config.Feed.PageSize)
		}
		if config.Feed.MaxDepth != 8 {
			t.Errorf("missing keys should keep defaults, got max depth %d", config.Feed.MaxDepth)
		}
		if config.Chat.Intent != "search" {
			t.Errorf("expected intent search, got %s", config.Chat.Intent)
		}
		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
	})

	t.Run("LoadConfig rejects invalid values", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"bad intent", "[chat]\nintent = \"gossip\"\n"},
			{"bad url", "[server]\nbase_url = \"not a url\"\n"},
			{"zero page size", "[feed]\npage_size = 0\n"},
			{"bad format", "[export]\nformat = \"xml\"\n"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tc.body), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				_, err := LoadConfig(configPath)
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Auth.Username = "admin"
		config.Feed.UseLLM = true

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload saved config: %v", err)
		}
		if loaded.Auth.Username != "admin" || !loaded.Feed.UseLLM {
			t.Errorf("saved values not round-tripped: %+v", loaded.Auth)
		}
	})

	t.Run("LogLevel", func(t *testing.T) {
		if lvl := (LogConfig{Level: "debug"}).LogLevel(); lvl != log.DebugLevel {
			t.Errorf("expected debug level, got %v", lvl)
		}
		if lvl := (LogConfig{Level: "loud"}).LogLevel(); lvl != log.InfoLevel {
			t.Errorf("expected info fallback, got %v", lvl)
		}
	})
}
