package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration location, relative to the
// service working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"logLevel"`
	UpstreamURL  string `yaml:"upstreamURL"`
	AmqpURL      string `yaml:"amqpURL"`
	AmqpExchange string `yaml:"amqpExchange"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("CHAT_UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AmqpURL = v
	}
	if v := os.Getenv("AMQP_EXCHANGE"); v != "" {
		cfg.AmqpExchange = v
	}
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = "https://api.dify.ai/v1"
	}
	if cfg.AmqpExchange == "" {
		cfg.AmqpExchange = "chat.events"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	return nil
}
