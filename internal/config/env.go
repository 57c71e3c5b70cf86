package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the exchangerate.host timeframe endpoint.
const DefaultAPIURL = "https://api.exchangerate.host/timeframe"

// Environment variable names.
const (
	EnvRunDate = "RUN_DATE"
	EnvAPIKey  = "EXCHANGE_RATE_API_KEY"
	EnvAPIURL  = "EXCHANGE_RATE_API_URL"
)

var envOnce sync.Once

// LoadEnv reads .env from the working directory once per process.
// Variables already present in the environment win.
func LoadEnv() {
	envOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// Env is a snapshot of the environment variables revmon reads.
type Env struct {
	RunDate string
	APIKey  string
	APIURL  string
}

// ReadEnv loads .env and returns the current values.
func ReadEnv() Env {
	LoadEnv()
	return Env{
		RunDate: os.Getenv(EnvRunDate),
		APIKey:  os.Getenv(EnvAPIKey),
		APIURL:  os.Getenv(EnvAPIURL),
	}
}

// RequireAPIKey returns the exchange API key or an ErrConfig error.
func (e Env) RequireAPIKey() (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: missing %s, set it in your environment", ErrConfig, EnvAPIKey)
	}
	return e.APIKey, nil
}

// APIURLOr returns the URL override or fallback.
func (e Env) APIURLOr(fallback string) string {
	if e.APIURL != "" {
		return e.APIURL
	}
	return fallback
}
