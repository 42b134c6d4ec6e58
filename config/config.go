// Package config loads and validates the agent configuration. Loading
// never substitutes defaults for invalid values: validation enumerates
// every problem and fails fast, so a bad config cannot start trading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marketgrid/polytrader/ledger"
	"github.com/marketgrid/polytrader/risk"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Config is the complete agent configuration.
type Config struct {
	Mode           string  `json:"mode" yaml:"mode"` // "paper" or "live"
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`

	ScanIntervalSec int `json:"scan_interval_sec" yaml:"scan_interval_sec"`
	ExecTimeoutSec  int `json:"exec_timeout_sec" yaml:"exec_timeout_sec"`
	TopPerCycle     int `json:"top_per_cycle" yaml:"top_per_cycle"`

	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Scanner  ScannerConfig  `json:"scanner" yaml:"scanner"`
	Executor ExecutorConfig `json:"executor" yaml:"executor"`
	Breaker  BreakerConfig  `json:"breaker" yaml:"breaker"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Server   ServerConfig   `json:"server" yaml:"server"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// APIKey comes from the environment only, never from the file.
	APIKey string `json:"-" yaml:"-"`
}

type RiskConfig struct {
	DailyLossLimit        float64 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	WeeklyLossLimit       float64 `json:"weekly_loss_limit" yaml:"weekly_loss_limit"`
	MaxDrawdownPct        float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MinSize               float64 `json:"min_size" yaml:"min_size"`
	MaxSize               float64 `json:"max_size" yaml:"max_size"`
	MaxPositionsTotal     int     `json:"max_positions_total" yaml:"max_positions_total"`
	MaxPositionsPerMarket int     `json:"max_positions_per_market" yaml:"max_positions_per_market"`
	MaxConcentrationPct   float64 `json:"max_concentration_pct" yaml:"max_concentration_pct"`
	KellyFraction         float64 `json:"kelly_fraction" yaml:"kelly_fraction"`
}

type ScannerConfig struct {
	GammaURL      string  `json:"gamma_url" yaml:"gamma_url"`
	FetchLimit    int     `json:"fetch_limit" yaml:"fetch_limit"`
	MinLiquidity  float64 `json:"min_liquidity" yaml:"min_liquidity"`
	EdgeThreshold float64 `json:"edge_threshold" yaml:"edge_threshold"`
	TimeoutSec    int     `json:"timeout_sec" yaml:"timeout_sec"`
	Retries       int     `json:"retries" yaml:"retries"`
}

type ExecutorConfig struct {
	ClobURL    string  `json:"clob_url" yaml:"clob_url"`
	Slippage   float64 `json:"slippage" yaml:"slippage"` // paper mode fill adjustment
	TimeoutSec int     `json:"timeout_sec" yaml:"timeout_sec"`
}

type BreakerConfig struct {
	Threshold   int `json:"threshold" yaml:"threshold"`
	CooldownSec int `json:"cooldown_sec" yaml:"cooldown_sec"`
}

type MetricsConfig struct {
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`
}

type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "sqlite" or "jsonl"
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile    string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// ValidationError lists every invalid field found in one pass. It is
// fatal: the process must not proceed with a partially valid config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

// LoadFromFile loads configuration from a YAML or JSON file, applies
// environment overrides, and validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables that may override the
// file. The API key is environment-only.
func (c *Config) applyEnv() {
	if v := os.Getenv("POLYTRADER_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("POLYTRADER_SCAN_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ScanIntervalSec = n
		}
	}
	if v := os.Getenv("POLYTRADER_DAILY_LOSS_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Risk.DailyLossLimit = f
		}
	}
	c.APIKey = os.Getenv("POLYTRADER_API_KEY")
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Mode != ModePaper && c.Mode != ModeLive {
		add("mode must be %q or %q, got %q", ModePaper, ModeLive, c.Mode)
	}
	if c.Mode == ModeLive && c.APIKey == "" {
		add("POLYTRADER_API_KEY is required for live mode")
	}
	if c.InitialBalance <= 0 {
		add("initial_balance must be positive")
	}
	if c.ScanIntervalSec <= 0 {
		add("scan_interval_sec must be positive")
	}
	if c.ExecTimeoutSec <= 0 {
		add("exec_timeout_sec must be positive")
	}
	if c.TopPerCycle <= 0 {
		add("top_per_cycle must be positive")
	}

	r := c.Risk
	if r.DailyLossLimit <= 0 {
		add("risk.daily_loss_limit must be positive")
	}
	if r.WeeklyLossLimit < r.DailyLossLimit {
		add("risk.weekly_loss_limit must be >= risk.daily_loss_limit")
	}
	if r.MaxDrawdownPct <= 0 || r.MaxDrawdownPct >= 1 {
		add("risk.max_drawdown_pct must be between 0 and 1")
	}
	if r.MinSize <= 0 {
		add("risk.min_size must be positive")
	}
	if r.MaxSize <= r.MinSize {
		add("risk.max_size must be greater than risk.min_size")
	}
	if r.MaxPositionsTotal <= 0 {
		add("risk.max_positions_total must be positive")
	}
	if r.MaxPositionsPerMarket <= 0 {
		add("risk.max_positions_per_market must be positive")
	}
	if r.MaxConcentrationPct <= 0 || r.MaxConcentrationPct >= 1 {
		add("risk.max_concentration_pct must be between 0 and 1")
	}
	if r.KellyFraction <= 0 || r.KellyFraction > 1 {
		add("risk.kelly_fraction must be in (0, 1]")
	}

	if c.Scanner.GammaURL == "" {
		add("scanner.gamma_url is required")
	}
	if c.Scanner.FetchLimit <= 0 {
		add("scanner.fetch_limit must be positive")
	}
	if c.Scanner.MinLiquidity < 0 {
		add("scanner.min_liquidity must not be negative")
	}
	if c.Scanner.EdgeThreshold <= 0 || c.Scanner.EdgeThreshold >= 1 {
		add("scanner.edge_threshold must be between 0 and 1")
	}
	if c.Scanner.TimeoutSec <= 0 {
		add("scanner.timeout_sec must be positive")
	}
	if c.Scanner.Retries < 0 {
		add("scanner.retries must not be negative")
	}

	if c.Mode == ModeLive && c.Executor.ClobURL == "" {
		add("executor.clob_url is required for live mode")
	}
	if c.Executor.TimeoutSec <= 0 {
		add("executor.timeout_sec must be positive")
	}

	if c.Breaker.Threshold <= 0 {
		add("breaker.threshold must be positive")
	}
	if c.Breaker.CooldownSec <= 0 {
		add("breaker.cooldown_sec must be positive")
	}

	if c.Metrics.PeriodsPerYear <= 0 {
		add("metrics.periods_per_year must be positive")
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			add("journal.db_path required for sqlite journal")
		}
	case "jsonl":
		if c.Journal.TradesFile == "" || c.Journal.SnapshotsFile == "" {
			add("journal.trades_file and journal.snapshots_file required for jsonl journal")
		}
	default:
		add("journal.type must be 'sqlite' or 'jsonl', got %q", c.Journal.Type)
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		add("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// SaveToFile writes the configuration as YAML or JSON by extension.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// RiskLimits converts the risk section into the immutable limits object
// the gate and ledger consume.
func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		DailyLossLimit:        c.Risk.DailyLossLimit,
		WeeklyLossLimit:       c.Risk.WeeklyLossLimit,
		MaxDrawdownPct:        c.Risk.MaxDrawdownPct,
		MinSize:               c.Risk.MinSize,
		MaxSize:               c.Risk.MaxSize,
		MaxPositionsTotal:     c.Risk.MaxPositionsTotal,
		MaxPositionsPerMarket: c.Risk.MaxPositionsPerMarket,
		MaxConcentrationPct:   c.Risk.MaxConcentrationPct,
		KellyFraction:         c.Risk.KellyFraction,
	}
}

// LedgerCaps returns the defensive caps the ledger re-checks.
func (c *Config) LedgerCaps() ledger.Caps {
	return ledger.Caps{
		MaxPositionsTotal:     c.Risk.MaxPositionsTotal,
		MaxPositionsPerMarket: c.Risk.MaxPositionsPerMarket,
	}
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSec) * time.Second
}

func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSec) * time.Second
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSec) * time.Second
}

// Default returns a paper-trading configuration with conservative
// limits.
func Default() *Config {
	return &Config{
		Mode:            ModePaper,
		InitialBalance:  10000,
		ScanIntervalSec: 300,
		ExecTimeoutSec:  30,
		TopPerCycle:     5,
		Risk: RiskConfig{
			DailyLossLimit:        500,
			WeeklyLossLimit:       2000,
			MaxDrawdownPct:        0.20,
			MinSize:               10,
			MaxSize:               100,
			MaxPositionsTotal:     10,
			MaxPositionsPerMarket: 1,
			MaxConcentrationPct:   0.30,
			KellyFraction:         0.25,
		},
		Scanner: ScannerConfig{
			GammaURL:      "https://gamma-api.polymarket.com",
			FetchLimit:    100,
			MinLiquidity:  10000,
			EdgeThreshold: 0.10,
			TimeoutSec:    30,
			Retries:       3,
		},
		Executor: ExecutorConfig{
			ClobURL:    "https://clob.polymarket.com",
			Slippage:   0.005,
			TimeoutSec: 30,
		},
		Breaker: BreakerConfig{
			Threshold:   5,
			CooldownSec: 300,
		},
		Metrics: MetricsConfig{
			PeriodsPerYear: 365,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./polytrader.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		LogLevel: "info",
	}
}
