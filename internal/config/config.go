package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "revmon.yaml"

// ErrConfig marks configuration and input-shape problems the user must fix.
var ErrConfig = errors.New("config error")

// Config represents the top-level revmon.yaml configuration.
type Config struct {
	Paths      PathsConfig    `yaml:"paths"`
	Exchange   ExchangeConfig `yaml:"exchange"`
	Checking   AccountConfig  `yaml:"checking"`
	Savings    AccountConfig  `yaml:"savings"`
	Categories []CategoryRule `yaml:"categories,omitempty"`
}

// PathsConfig locates the dated input and output folders.
type PathsConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// ExchangeConfig controls the exchange-rate API client.
type ExchangeConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// AccountConfig maps a Revolut export to a Monarch account.
type AccountConfig struct {
	Name              string `yaml:"name"`
	Currency          string `yaml:"currency"`
	CurrencySymbol    string `yaml:"currency_symbol,omitempty"`
	InputFile         string `yaml:"input_file"`
	TransactionOutput string `yaml:"transaction_output"`
	BalanceOutput     string `yaml:"balance_output"`
	// OpeningBalance seeds the balance history when no prior snapshot exists.
	OpeningBalance string `yaml:"opening_balance,omitempty"`
	// SkipMissingRates drops rows without an exchange rate instead of failing.
	SkipMissingRates bool `yaml:"skip_missing_rates"`
	// States lists the export states kept by the checking parser
	// (COMPLETED and PENDING when empty).
	States []string `yaml:"states,omitempty"`
}

// CategoryRule assigns a Monarch category to descriptions matching Pattern.
type CategoryRule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// Load reads a revmon.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks that every account has the fields the pipelines rely on.
func (c *Config) Validate() error {
	if c.Paths.Input == "" || c.Paths.Output == "" {
		return fmt.Errorf("%w: paths.input and paths.output are required", ErrConfig)
	}
	if c.Exchange.Timeout <= 0 {
		return fmt.Errorf("%w: exchange.timeout must be positive, got %s", ErrConfig, c.Exchange.Timeout)
	}
	if c.Exchange.Retries < 0 {
		return fmt.Errorf("%w: exchange.retries must not be negative, got %d", ErrConfig, c.Exchange.Retries)
	}

	accounts := []struct {
		key  string
		acct AccountConfig
	}{
		{"checking", c.Checking},
		{"savings", c.Savings},
	}
	for _, a := range accounts {
		key, acct := a.key, a.acct
		switch {
		case acct.Name == "":
			return fmt.Errorf("%w: %s.name is required", ErrConfig, key)
		case len(acct.Currency) != 3:
			return fmt.Errorf("%w: %s.currency must be a 3-letter code, got %q", ErrConfig, key, acct.Currency)
		case acct.InputFile == "" || acct.TransactionOutput == "" || acct.BalanceOutput == "":
			return fmt.Errorf("%w: %s file names are required", ErrConfig, key)
		}
	}
	return nil
}

// Default returns the configuration for a standard Revolut checking (USD)
// and savings (GBP) setup.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Input:  "input",
			Output: "output",
		},
		Exchange: ExchangeConfig{
			URL:     DefaultAPIURL,
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		Checking: AccountConfig{
			Name:              "Revolut Checking",
			Currency:          "USD",
			InputFile:         "checking_transactions.csv",
			TransactionOutput: "checking_transaction_import.csv",
			BalanceOutput:     "checking_balance_history_import.csv",
		},
		Savings: AccountConfig{
			Name:              "Revolut Savings",
			Currency:          "GBP",
			CurrencySymbol:    "£",
			InputFile:         "savings_transactions.csv",
			TransactionOutput: "savings_transaction_import.csv",
			BalanceOutput:     "savings_balance_history_import.csv",
			SkipMissingRates:  true,
		},
	}
}
