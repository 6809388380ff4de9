package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/agentcore/agentcore/pkg/agentcore/config"
)

// appEnv holds the settings that come from the process environment (or a
// .env file), which take precedence over whatever a --config file sets
// for the same concern: secrets and per-deployment overrides belong in
// the environment, structural settings belong in the file.
type appEnv struct {
	GatewayAPIKey   string `env:"AGENTCORE_GATEWAY_API_KEY"`
	RedisURL        string `env:"AGENTCORE_REDIS_URL"`
	CheckpointDBURL string `env:"AGENTCORE_CHECKPOINT_DB"`
}

// loadEnv reads a .env file if present (a missing file is not an error —
// most deployments set real environment variables directly) and parses
// the process environment into appEnv.
func loadEnv() (appEnv, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return appEnv{}, fmt.Errorf("load .env: %w", err)
	}

	var e appEnv
	if err := env.Parse(&e); err != nil {
		return appEnv{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

// loadFileConfig loads the structural config file if a path was given.
// An empty path returns an empty Config rather than an error, so the CLI
// works with environment variables and flag defaults alone.
func loadFileConfig(path string) (config.Config, error) {
	if path == "" {
		return config.New(nil), nil
	}
	return config.FromFile(path)
}
