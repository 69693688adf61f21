package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// loadDotEnv sets variables from path without overriding the environment.
func loadDotEnv(path string) error {
	return godotenv.Load(path)
}

func loadDotEnvIfPresent(path string) {
	if err := loadDotEnv(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load env file", "path", path, "error", err)
	}
}
