// Package config loads runtime settings for fractal applications from
// defaults, an optional YAML file and FRACTAL_-prefixed environment
// variables, later sources overriding earlier ones.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log   LogConfig   `koanf:"log"`
	Model ModelConfig `koanf:"model"`
	Agent AgentConfig `koanf:"agent"`
	Trace TraceConfig `koanf:"trace"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type ModelConfig struct {
	Provider    string  `koanf:"provider"` // openai, anthropic, mock
	Name        string  `koanf:"name"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int64   `koanf:"max_tokens"`
}

type AgentConfig struct {
	MaxIterations int `koanf:"max_iterations"`
	MaxRetries    int `koanf:"max_retries"`
	ContextWindow int `koanf:"context_window"`
}

type TraceConfig struct {
	Enabled    bool   `koanf:"enabled"`
	OutputPath string `koanf:"output_path"`
}

// Load reads configuration with the precedence defaults < file < env.
// An empty path skips the file stage. Environment variables map by prefix
// and underscores, e.g. FRACTAL_MODEL_PROVIDER -> model.provider.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("model.provider", "openai")
	k.Set("model.temperature", 0.7)
	k.Set("model.max_tokens", 4096)
	k.Set("agent.max_iterations", 10)
	k.Set("agent.max_retries", 3)
	k.Set("trace.enabled", false)
	k.Set("trace.output_path", "traces/{run_id}.jsonl")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("FRACTAL_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "FRACTAL_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
