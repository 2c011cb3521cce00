package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagi-labs/operator-console/internal/platform/envutil"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// Config carries everything the console daemon needs at startup. Base URLs
// default to a single-host development cluster; each can be moved
// independently via env or the optional YAML file named by CONSOLE_CONFIG.
// Precedence: env > file > defaults.
type Config struct {
	Mode     string `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`
	DataDir  string `yaml:"data_dir"`

	ChatBaseURL         string `yaml:"chat_base_url"`
	OrchestratorBaseURL string `yaml:"orchestrator_base_url"`
	TelemetryBaseURL    string `yaml:"telemetry_base_url"`

	FeedWindow     int           `yaml:"feed_window"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

func defaults() Config {
	return Config{
		Mode:                "development",
		HTTPAddr:            "127.0.0.1:7780",
		DataDir:             defaultDataDir(),
		ChatBaseURL:         "ws://127.0.0.1:8080",
		OrchestratorBaseURL: "http://127.0.0.1:8090",
		TelemetryBaseURL:    "http://127.0.0.1:8091",
		FeedWindow:          256,
		ReconnectDelay:      3 * time.Second,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagi-console"
	}
	return filepath.Join(home, ".pagi-console")
}

func Load(log *logger.Logger) Config {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONSOLE_CONFIG")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Config file unreadable, continuing with env/defaults", "path", path, "error", err)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Warn("Config file invalid YAML, continuing with env/defaults", "path", path, "error", err)
		}
	}

	cfg.Mode = envutil.Str("CONSOLE_MODE", cfg.Mode)
	cfg.HTTPAddr = envutil.Str("CONSOLE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.DataDir = envutil.Str("CONSOLE_DATA_DIR", cfg.DataDir)
	cfg.ChatBaseURL = strings.TrimRight(envutil.Str("CONSOLE_CHAT_URL", cfg.ChatBaseURL), "/")
	cfg.OrchestratorBaseURL = strings.TrimRight(envutil.Str("CONSOLE_ORCHESTRATOR_URL", cfg.OrchestratorBaseURL), "/")
	cfg.TelemetryBaseURL = strings.TrimRight(envutil.Str("CONSOLE_TELEMETRY_URL", cfg.TelemetryBaseURL), "/")
	cfg.FeedWindow = envutil.Int("CONSOLE_FEED_WINDOW", cfg.FeedWindow)
	cfg.ReconnectDelay = envutil.Duration("CONSOLE_RECONNECT_DELAY", cfg.ReconnectDelay)

	return cfg
}
