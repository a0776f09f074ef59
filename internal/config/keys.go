package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "SIGSCOUT_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "SIGSCOUT_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Agent.APIKey = v.(string) },
	},
	{
		env: "SIGSCOUT_ASSISTANT_ID", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Agent.AssistantID = v.(string) },
	},
	{
		env: "SIGSCOUT_AGENT_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Agent.BaseURL = v.(string) },
	},
	{
		env: "SIGSCOUT_AGENT_POLL_INTERVAL", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.Agent.PollInterval = v.(time.Duration) },
	},
	{
		env: "SIGSCOUT_AGENT_POLL_TIMEOUT", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.Agent.PollTimeout = v.(time.Duration) },
	},
	{
		env: "SIGSCOUT_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "SIGSCOUT_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	for _, s := range specs {
		raw := getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
