package application

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	relay "relaycloud/internal/relay/domain"
)

// Config tunes the workflows and the live stream.
type Config struct {
	// StreamBuffer is the per-subscriber snapshot channel depth.
	StreamBuffer int `yaml:"stream_buffer"`
	// Suggestions overrides the static autocomplete device names.
	Suggestions []string `yaml:"suggestions"`
}

// LoadConfig loads workflow config from yaml or env. Precedence: yaml file
// named by RELAY_CONFIG, then env, then defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		StreamBuffer: getenvIntDefault("RELAY_STREAM_BUFFER", 16),
	}

	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.StreamBuffer <= 0 {
		return cfg, errors.New("application: stream buffer must be positive")
	}
	if len(cfg.Suggestions) == 0 {
		cfg.Suggestions = relay.SuggestedDevices()
	} else {
		normalized := make([]string, 0, len(cfg.Suggestions))
		for _, name := range cfg.Suggestions {
			device, err := relay.NormalizeDeviceName(name)
			if err != nil {
				return cfg, err
			}
			normalized = append(normalized, device)
		}
		cfg.Suggestions = normalized
	}
	return cfg, nil
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
