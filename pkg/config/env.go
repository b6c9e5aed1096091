package config

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnv overrides cfg with DOJO_* environment variables.
func ApplyEnv(cfg *Config) error {
	var err error
	if cfg.Seed, err = getenvInt64("DOJO_SEED", cfg.Seed); err != nil {
		return err
	}
	if cfg.Episodes.Max, err = getenvInt("DOJO_MAX_EPISODES", cfg.Episodes.Max); err != nil {
		return err
	}
	if cfg.Timesteps.Max, err = getenvInt("DOJO_MAX_TIMESTEPS", cfg.Timesteps.Max); err != nil {
		return err
	}
	if cfg.Output.Render, err = getenvBool("DOJO_RENDER", cfg.Output.Render); err != nil {
		return err
	}
	cfg.Agent.Type = getenv("DOJO_AGENT", cfg.Agent.Type)
	cfg.Agent.Model = getenv("DOJO_MODEL", cfg.Agent.Model)
	cfg.Environment.Address = getenv("DOJO_ENV_ADDRESS", cfg.Environment.Address)
	cfg.Output.Save.DB = getenv("DOJO_DB", cfg.Output.Save.DB)
	cfg.Logging.Level = getenv("DOJO_LOG_LEVEL", cfg.Logging.Level)
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getenvInt64(key string, fallback int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
