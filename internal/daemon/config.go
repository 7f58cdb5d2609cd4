// Package daemon holds the process-level configuration for the earnly
// ledger daemon, loaded from a TOML file.
package daemon

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/earnly/earnly/internal/app/ledger"
	"github.com/earnly/earnly/internal/domain"
)

// Config is the full daemon configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Ledger   LedgerConfig   `toml:"ledger"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	EnableMetrics bool   `toml:"enable_metrics"`
}

// Addr returns the host:port listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LedgerConfig carries the bonus amounts and offered plans. Monetary values
// are TOML strings so they parse as exact decimals, never floats.
type LedgerConfig struct {
	NewUserBonus   string       `toml:"new_user_bonus"`
	ReferralBonus  string       `toml:"referral_bonus"`
	CodeRetryLimit int          `toml:"code_retry_limit"`
	SessionTTL     string       `toml:"session_ttl"`
	Plans          []PlanConfig `toml:"plans"`
}

// PlanConfig is one offered task tier.
type PlanConfig struct {
	Amount      string `toml:"amount"`
	DailyReward string `toml:"daily_reward"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:          "127.0.0.1",
			Port:          8780,
			EnableMetrics: true,
		},
		Database: DatabaseConfig{
			Path: "earnly.db",
		},
		Ledger: LedgerConfig{
			NewUserBonus:   "120",
			ReferralBonus:  "10",
			CodeRetryLimit: 20,
			SessionTTL:     "168h",
			Plans: []PlanConfig{
				{Amount: "100", DailyReward: "2"},
				{Amount: "500", DailyReward: "12"},
				{Amount: "1000", DailyReward: "28"},
			},
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error;
// the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LedgerConfig converts the TOML view into the service's typed config.
func (c Config) LedgerConfig() (ledger.Config, error) {
	newUser, err := decimal.NewFromString(c.Ledger.NewUserBonus)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("new_user_bonus: %w", err)
	}
	referral, err := decimal.NewFromString(c.Ledger.ReferralBonus)
	if err != nil {
		return ledger.Config{}, fmt.Errorf("referral_bonus: %w", err)
	}

	plans := make([]domain.Plan, 0, len(c.Ledger.Plans))
	for _, p := range c.Ledger.Plans {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return ledger.Config{}, fmt.Errorf("plan amount %q: %w", p.Amount, err)
		}
		reward, err := decimal.NewFromString(p.DailyReward)
		if err != nil {
			return ledger.Config{}, fmt.Errorf("plan daily_reward %q: %w", p.DailyReward, err)
		}
		plans = append(plans, domain.Plan{Amount: amount, DailyReward: reward})
	}

	return ledger.Config{
		NewUserBonus:   newUser,
		ReferralBonus:  referral,
		CodeRetryLimit: c.Ledger.CodeRetryLimit,
		Plans:          plans,
	}, nil
}

// SessionTTL parses the session lifetime. Falls back to the default on a
// blank value.
func (c Config) SessionTTL() (time.Duration, error) {
	raw := c.Ledger.SessionTTL
	if raw == "" {
		raw = DefaultConfig().Ledger.SessionTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("session_ttl: %w", err)
	}
	return ttl, nil
}
