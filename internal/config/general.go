package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PoolDefinitionPath is the path to the JSON pool definition file.
	PoolDefinitionPath string

	// ScenarioPath is the path to an optional scenario file to replay at
	// startup. Empty disables the replay.
	ScenarioPath string

	// WebPort is the port of the read-only query API.
	WebPort string

	// SnapshotsEnabled controls whether join/exit cycle snapshots are persisted
	// to the database.
	SnapshotsEnabled bool
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PoolDefinitionPath, err = getEnv("POOL_DEFINITION_PATH")
	if err != nil {
		return err
	}

	ScenarioPath = os.Getenv("SCENARIO_PATH")

	WebPort = os.Getenv("WEB_PORT")
	if WebPort == "" {
		WebPort = "8080"
	}

	SnapshotsEnabled = getEnvAsBool("SNAPSHOTS_ENABLED", false)

	log.Debug().
		Str("PoolDefinitionPath", PoolDefinitionPath).
		Str("ScenarioPath", ScenarioPath).
		Str("WebPort", WebPort).
		Bool("SnapshotsEnabled", SnapshotsEnabled).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsBool retrieves an environment variable as a bool with a default.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
