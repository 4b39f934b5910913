package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/openamm/weightedpool/internal/config"
	"github.com/openamm/weightedpool/internal/logger"
	"github.com/openamm/weightedpool/internal/pool"
	"github.com/openamm/weightedpool/internal/simulations"
	"github.com/openamm/weightedpool/internal/state"
	"github.com/openamm/weightedpool/internal/vault"
	"github.com/openamm/weightedpool/internal/web"
)

// main is the entry point for the pool engine simulator.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Weighted pool engine starting...")

	// Initialize Database Connection (snapshot persistence only)
	if config.SnapshotsEnabled {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	}

	// --- 2. Pool Construction ---
	def, err := config.LoadPoolDefinition(config.PoolDefinitionPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pool definition")
	}
	tokens, err := def.BuildTokens()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build pool tokens")
	}
	swapFee, err := def.SwapFee()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid swap fee")
	}
	protocolSwapFee, err := def.ProtocolSwapFee()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid protocol swap fee")
	}
	protocolYieldFee, err := def.ProtocolYieldFee()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid protocol yield fee")
	}

	host := vault.NewMemoryHost(def.Owner)

	p, err := pool.New(pool.Config{
		PoolID:                     def.PoolID,
		Tokens:                     tokens,
		SwapFeePercentage:          swapFee,
		ProtocolSwapFeePercentage:  protocolSwapFee,
		ProtocolYieldFeePercentage: protocolYieldFee,
		FeeRecipient:               def.FeeRecipient,
		Owner:                      def.Owner,
		Host:                       host,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to construct pool")
	}
	host.RegisterPool(p.PoolID(), p.TokenDenoms())
	log.Info().Str("pool_id", p.PoolID()).Int("tokens", len(tokens)).Msg("Pool constructed")

	// --- 3. Scenario Replay ---
	if config.ScenarioPath != "" {
		scenario, err := simulations.LoadScenario(config.ScenarioPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load scenario")
		}

		runner := simulations.NewRunner(p, host)
		report, err := runner.Run(scenario)
		if err != nil {
			log.Fatal().Err(err).Msg("Scenario run failed")
		}

		encoded, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode run report")
		} else {
			os.Stdout.Write(append(encoded, '\n'))
		}
		if report.Failed > 0 {
			log.Warn().Int("failed", report.Failed).Msg("Scenario finished with failed steps")
		}
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, p)
	log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting pool query API")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
