package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Billing configuration
	LookbackYears int    // Anchor scan window for recurring generation
	GenerateCron  string // Cron expression for the daemon's generation runs

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from the environment, reading a .env file
// first when one is present
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		// Billing defaults. The lookback must exceed the yearly
		// recurrence period so missed runs do not orphan chains.
		LookbackYears: 2,
		GenerateCron:  "0 6 * * *", // daily at 06:00

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if lookback := os.Getenv("LOOKBACK_YEARS"); lookback != "" {
		parsed, err := strconv.Atoi(lookback)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("LOOKBACK_YEARS must be a positive integer, got %q", lookback)
		}
		config.LookbackYears = parsed
	}
	if cron := os.Getenv("GENERATE_CRON"); cron != "" {
		config.GenerateCron = cron
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
