package app

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/core"
	"github.com/fitcoach-core/server/pkg/database"
	pkgredis "github.com/fitcoach-core/server/pkg/redis"
)

// Config defines every configurable parameter of the server, sourced from
// environment variables (loaded from .env for local runs).
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	HTTP struct {
		Addr        string   `envconfig:"HTTP_ADDR" default:":8080"`
		CORSOrigins []string `envconfig:"HTTP_CORS_ORIGINS"`
	}

	// Infrastructure
	Database database.Config
	Redis    pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Agent        model.AgentModelConfig
	Extractor    model.ExtractorModelConfig
	Conversation model.ConversationConfig

	JWTSecret string `envconfig:"AUTH_JWT_SECRET"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		// a missing file is normal outside local runs
		_ = godotenv.Load(envFile)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// ValidateServe checks what serving needs beyond the database.
func (c *Config) ValidateServe() error {
	if c.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	return nil
}
