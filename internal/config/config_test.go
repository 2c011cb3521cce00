package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load(mustTestLogger(t))
	if cfg.HTTPAddr != "127.0.0.1:7780" {
		t.Fatalf("default http addr: %q", cfg.HTTPAddr)
	}
	if cfg.ChatBaseURL != "ws://127.0.0.1:8080" {
		t.Fatalf("default chat url: %q", cfg.ChatBaseURL)
	}
	if cfg.FeedWindow != 256 || cfg.ReconnectDelay != 3*time.Second {
		t.Fatalf("default feed settings: window=%d delay=%v", cfg.FeedWindow, cfg.ReconnectDelay)
	}
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	file := "http_addr: 0.0.0.0:9000\nfeed_window: 64\nchat_base_url: ws://cluster:8080\n"
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONSOLE_CONFIG", path)
	t.Setenv("CONSOLE_FEED_WINDOW", "32")
	t.Setenv("CONSOLE_CHAT_URL", "ws://cluster:9999/")

	cfg := Load(mustTestLogger(t))
	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Fatalf("file value must override default: %q", cfg.HTTPAddr)
	}
	if cfg.FeedWindow != 32 {
		t.Fatalf("env must override file: %d", cfg.FeedWindow)
	}
	if cfg.ChatBaseURL != "ws://cluster:9999" {
		t.Fatalf("env url must win and lose its trailing slash: %q", cfg.ChatBaseURL)
	}
}

func TestLoadSurvivesBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONSOLE_CONFIG", path)

	cfg := Load(mustTestLogger(t))
	if cfg.HTTPAddr != "127.0.0.1:7780" {
		t.Fatalf("broken file must fall back to defaults: %q", cfg.HTTPAddr)
	}
}
