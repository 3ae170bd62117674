package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from .env when the file is present. Variables that are already
// set in the process environment win.
func LoadEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(".env")
}

// GetEnv returns the trimmed value of an environment variable
func GetEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// GetEnvOrDefault returns the variable value or the fallback when it is unset
func GetEnvOrDefault(key, fallback string) string {
	if v := GetEnv(key); v != "" {
		return v
	}
	return fallback
}

// IsProduction reports whether APP_ENV is set to production
func IsProduction() bool {
	return strings.EqualFold(GetEnv("APP_ENV"), "production")
}
