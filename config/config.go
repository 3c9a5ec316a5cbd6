// Package config provides configuration for the governance kernel.
package config

import (
	"os"
	"strconv"
)

// RoutingMode selects how the trust engine picks among eligible agents.
type RoutingMode string

const (
	// RoutingDeterministic always picks the single highest-trust agent.
	RoutingDeterministic RoutingMode = "deterministic"
	// RoutingCompetitive performs trust-weighted random selection.
	RoutingCompetitive RoutingMode = "competitive"
)

// Config holds the kernel configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Governance thresholds
	TrustThreshold       float64
	SuppressionThreshold float64
	DriftDelta           float64
	MaxRedemptionCycles  int
	ProbationQuota       int

	// Learning rates
	RewardRate  float64
	PenaltyRate float64

	// Mutation control loop
	MutationRate      float64
	TargetSuccessRate float64
	HistoryWindow     int

	// Routing
	RoutingMode RoutingMode
	RandomSeed  int64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:          getEnv("DATABASE_URL", "file:governance_state.db?cache=shared&mode=rwc"),
		TrustThreshold:       getEnvFloat("TRUST_THRESHOLD", 0.7),
		SuppressionThreshold: getEnvFloat("SUPPRESSION_THRESHOLD", 0.75),
		DriftDelta:           getEnvFloat("DRIFT_DETECTION_DELTA", 0.1),
		MaxRedemptionCycles:  getEnvInt("MAX_REDEMPTION_CYCLES", 4),
		ProbationQuota:       getEnvInt("PROBATION_QUOTA", 2),
		RewardRate:           getEnvFloat("REWARD_RATE", 0.02),
		PenaltyRate:          getEnvFloat("PENALTY_RATE", 0.05),
		MutationRate:         getEnvFloat("MUTATION_RATE", 0.05),
		TargetSuccessRate:    getEnvFloat("TARGET_SUCCESS_RATE", 0.85),
		HistoryWindow:        getEnvInt("MUTATION_HISTORY_WINDOW", 100),
		RoutingMode:          RoutingMode(getEnv("ROUTING_MODE", string(RoutingDeterministic))),
		RandomSeed:           int64(getEnvInt("RANDOM_SEED", 0)),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
