package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables that override secrets from the file.
const (
	// EnvSMTPPassword overrides Config.Password.
	EnvSMTPPassword = "DEADMAN_SMTP_PASSWORD"
	// EnvWebPassword overrides Config.WebPassword.
	EnvWebPassword = "DEADMAN_WEB_PASSWORD"
	// EnvLegacyWebPassword is honored when EnvWebPassword is unset.
	EnvLegacyWebPassword = "WEB_PASSWORD"

	// envFilename is the optional dotenv file looked up next to the configuration.
	envFilename = ".env"
)

// loadDotEnv loads the .env file sitting next to the configuration, if any.
// Variables already present in the environment win.
func loadDotEnv(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), envFilename)

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// applyEnv copies secret overrides from the environment into cfg.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvSMTPPassword); ok {
		cfg.Password = v
	}

	if v, ok := os.LookupEnv(EnvWebPassword); ok && v != "" {
		cfg.WebPassword = v

		return
	}

	if v, ok := os.LookupEnv(EnvLegacyWebPassword); ok && v != "" {
		cfg.WebPassword = v
	}
}
