package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port               int
	NatsURL            string
	NatsToken          string
	DatabaseURL        string
	LogLevel           string
	AnthropicAPIKey    string
	AnthropicModel     string
	Stage2Concurrency  int
	PipelineTimeout    time.Duration
	AnalyzerAttempts   int
	PromptWindowTokens int
}

func Load() Config {
	return Config{
		Port:               envInt("INSIGHT_PORT", 8620),
		NatsURL:            envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:          envStr("NATS_TOKEN", ""),
		DatabaseURL:        envStr("DATABASE_URL", ""),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey:    envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     envStr("INSIGHT_MODEL", "claude-sonnet-4-20250514"),
		Stage2Concurrency:  envInt("INSIGHT_STAGE2_CONCURRENCY", 4),
		PipelineTimeout:    envDuration("INSIGHT_PIPELINE_TIMEOUT", 10*time.Minute),
		AnalyzerAttempts:   envInt("INSIGHT_ANALYZER_ATTEMPTS", 3),
		PromptWindowTokens: envInt("INSIGHT_PROMPT_WINDOW_TOKENS", 12000),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
