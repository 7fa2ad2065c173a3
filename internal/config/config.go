// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort           = "8080"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultChatModel      = "gemini-2.5-flash"
)

// Config holds every setting the commands read from the environment.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL   string
	AuthJWTSecret string

	GeminiAPIKey   string
	EmbeddingModel string
	ChatModel      string

	Bucket    string
	RedisAddr string

	NotionToken      string
	NotionBudgetDBID string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return Config{
		Port:             getenv("PORT", DefaultPort),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "console"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AuthJWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel:   getenv("EMBEDDING_MODEL", DefaultEmbeddingModel),
		ChatModel:        getenv("CHAT_MODEL", DefaultChatModel),
		Bucket:           os.Getenv("GCS_BUCKET"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionBudgetDBID: os.Getenv("NOTION_BUDGET_DB_ID"),
	}
}

// Validate reports settings without which the API server cannot start.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DocumentsMissing lists the secrets the document endpoints need that are unset.
func (c Config) DocumentsMissing() []string {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Bucket == "" {
		missing = append(missing, "GCS_BUCKET")
	}
	return missing
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
