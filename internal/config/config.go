// Package config loads daemon configuration from a YAML file, a .env
// file and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mathshard/oddsengine/internal/logging"
	"github.com/mathshard/oddsengine/pkg/football"
	"github.com/mathshard/oddsengine/pkg/policy"
	"github.com/mathshard/oddsengine/pkg/value"
)

// Duration wraps time.Duration so YAML can carry "15m" style values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(td)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PolicyConfig mirrors the bankroll limits in config form.
type PolicyConfig struct {
	MaxStakePerBet   float64 `yaml:"max_stake_per_bet"`
	MinStake         float64 `yaml:"min_stake"`
	MaxMatchExposure float64 `yaml:"max_match_exposure"`
	MaxOpenExposure  float64 `yaml:"max_open_exposure"`
	MaxOpenBets      int     `yaml:"max_open_bets"`
	MaxDailyStake    float64 `yaml:"max_daily_stake"`
}

// Limits converts the config form into policy limits. A nil receiver
// yields nil, which disables policy checks.
func (p *PolicyConfig) Limits() *policy.Limits {
	if p == nil {
		return nil
	}
	return &policy.Limits{
		MaxStakePerBet:   decimal.NewFromFloat(p.MaxStakePerBet),
		MinStake:         decimal.NewFromFloat(p.MinStake),
		MaxMatchExposure: decimal.NewFromFloat(p.MaxMatchExposure),
		MaxOpenExposure:  decimal.NewFromFloat(p.MaxOpenExposure),
		MaxOpenBets:      p.MaxOpenBets,
		MaxDailyStake:    decimal.NewFromFloat(p.MaxDailyStake),
	}
}

// EngineConfig controls snapshot building and the scan loop.
type EngineConfig struct {
	Leagues         []football.LeagueID `yaml:"leagues"`
	ScanInterval    Duration            `yaml:"scan_interval"`
	SettleInterval  Duration            `yaml:"settle_interval"`
	ScanHorizonDays int                 `yaml:"scan_horizon_days"`
}

// Config is the full daemon configuration.
type Config struct {
	ListenAddr      string  `yaml:"listen_addr"`
	DatabasePath    string  `yaml:"database_path"`
	InitialBankroll float64 `yaml:"initial_bankroll"`

	Engine  EngineConfig   `yaml:"engine"`
	Value   value.Config   `yaml:"value"`
	Policy  *PolicyConfig  `yaml:"policy"`
	Logging logging.Config `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8090",
		DatabasePath:    "oddsengine.db",
		InitialBankroll: 1000,
		Engine: EngineConfig{
			ScanInterval:    Duration(15 * time.Minute),
			SettleInterval:  Duration(5 * time.Minute),
			ScanHorizonDays: 7,
		},
		Value:   value.DefaultConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the YAML file at path (optional), loads a .env file if one
// exists, and applies environment overrides.
func Load(path string) (*Config, error) {
	// Missing .env is fine; it only seeds the environment.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and fills gaps with defaults.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8090"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "oddsengine.db"
	}
	if c.InitialBankroll <= 0 {
		return fmt.Errorf("initial_bankroll must be > 0, got %v", c.InitialBankroll)
	}
	if c.Engine.ScanInterval <= 0 {
		c.Engine.ScanInterval = Duration(15 * time.Minute)
	}
	if c.Engine.SettleInterval <= 0 {
		c.Engine.SettleInterval = Duration(5 * time.Minute)
	}
	if c.Engine.ScanHorizonDays <= 0 {
		c.Engine.ScanHorizonDays = 7
	}
	if c.Value.MaxKellyFraction < 0 || c.Value.MaxKellyFraction > 1 {
		return fmt.Errorf("value.max_kelly_fraction must be in [0, 1], got %v", c.Value.MaxKellyFraction)
	}
	return nil
}

// --- Internal helpers ---

func applyEnv(cfg *Config) {
	if v := os.Getenv("ODDSENGINE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ODDSENGINE_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("ODDSENGINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ODDSENGINE_BANKROLL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.InitialBankroll = f
		}
	}
}
