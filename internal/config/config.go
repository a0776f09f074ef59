package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server  ServerConfig
	Agent   AgentConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type AgentConfig struct {
	APIKey       string
	AssistantID  string
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// SignalLogPath is where the CSV signal log lives inside the data directory.
func (c Config) SignalLogPath() string {
	return filepath.Join(c.Storage.DataDir, "signals.csv")
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Agent: AgentConfig{
			AssistantID:  "asst_6AnFZkW7f6Jhns774D9GNWXr",
			BaseURL:      "https://api.openai.com/v1",
			PollInterval: time.Second,
			PollTimeout:  2 * time.Minute,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "sigscout-data"
		}
	}
	return filepath.Join(dir, "sigscout")
}

// Load reads configuration from the environment on top of the defaults.
// The OpenAI API key is required; without it the process must not start.
func Load() (Config, error) {
	return loadWith(os.Getenv)
}

func loadWith(getenv func(string) string) (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg, getenv)

	if cfg.Agent.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable SIGSCOUT_OPENAI_API_KEY")
	}

	return cfg, nil
}
