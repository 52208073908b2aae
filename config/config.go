// Package config loads the process configuration: account defaults,
// the process-wide risk limits, per-user and per-strategy overrides,
// journal backend selection, and the monitor interval.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/riskgate/risk"
)

// Config is the complete process configuration.
type Config struct {
	Account    AccountConfig             `json:"account" yaml:"account"`
	Limits     LimitsConfig              `json:"limits" yaml:"limits"`
	Users      map[string]LimitsOverride `json:"users,omitempty" yaml:"users,omitempty"`
	Strategies map[string]LimitsOverride `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	Monitor    MonitorConfig             `json:"monitor" yaml:"monitor"`
	Journal    JournalConfig             `json:"journal" yaml:"journal"`
	Metrics    MetricsConfig             `json:"metrics" yaml:"metrics"`
}

// AccountConfig seeds each scope's ledger and the fill model.
type AccountConfig struct {
	Cash        float64 `json:"cash" yaml:"cash"`
	FeeRate     float64 `json:"fee_rate" yaml:"fee_rate"`
	Timezone    string  `json:"timezone" yaml:"timezone"`
	RejectUnmet bool    `json:"reject_unmet" yaml:"reject_unmet"`
}

// LimitsConfig is the process-default limit set. Zero caps are
// disabled. Cutoff is a wall-clock "HH:MM" in the account timezone.
type LimitsConfig struct {
	Enforce     bool `json:"enforce" yaml:"enforce"`
	SquareOff   bool `json:"square_off" yaml:"square_off"`
	ReduceOnCap bool `json:"reduce_on_cap" yaml:"reduce_on_cap"`

	MaxDailyLoss    float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	DailyLossCombo  string  `json:"daily_loss_combo,omitempty" yaml:"daily_loss_combo,omitempty"`

	MaxPositionValue float64 `json:"max_position_value" yaml:"max_position_value"`
	MaxPositionQty   float64 `json:"max_position_qty" yaml:"max_position_qty"`
	MaxGrossExposure float64 `json:"max_gross_exposure" yaml:"max_gross_exposure"`
	MaxNetExposure   float64 `json:"max_net_exposure" yaml:"max_net_exposure"`
	MaxOpenOrders    int     `json:"max_open_orders" yaml:"max_open_orders"`

	Cutoff        string `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	ExpirePending bool   `json:"expire_pending" yaml:"expire_pending"`
}

// LimitsOverride is one optional override layer; only set fields take
// effect.
type LimitsOverride struct {
	Enforce     *bool `json:"enforce,omitempty" yaml:"enforce,omitempty"`
	SquareOff   *bool `json:"square_off,omitempty" yaml:"square_off,omitempty"`
	ReduceOnCap *bool `json:"reduce_on_cap,omitempty" yaml:"reduce_on_cap,omitempty"`

	MaxDailyLoss    *float64 `json:"max_daily_loss,omitempty" yaml:"max_daily_loss,omitempty"`
	MaxDailyLossPct *float64 `json:"max_daily_loss_pct,omitempty" yaml:"max_daily_loss_pct,omitempty"`
	DailyLossCombo  *string  `json:"daily_loss_combo,omitempty" yaml:"daily_loss_combo,omitempty"`

	MaxPositionValue *float64 `json:"max_position_value,omitempty" yaml:"max_position_value,omitempty"`
	MaxPositionQty   *float64 `json:"max_position_qty,omitempty" yaml:"max_position_qty,omitempty"`
	MaxGrossExposure *float64 `json:"max_gross_exposure,omitempty" yaml:"max_gross_exposure,omitempty"`
	MaxNetExposure   *float64 `json:"max_net_exposure,omitempty" yaml:"max_net_exposure,omitempty"`
	MaxOpenOrders    *int     `json:"max_open_orders,omitempty" yaml:"max_open_orders,omitempty"`

	Cutoff        *string `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
	ExpirePending *bool   `json:"expire_pending,omitempty" yaml:"expire_pending,omitempty"`
}

type MonitorConfig struct {
	Interval string `json:"interval" yaml:"interval"` // e.g. "30s"
}

func (m MonitorConfig) ParseInterval() (time.Duration, error) {
	if m.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(m.Interval)
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "memory"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	Buffer     int    `json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // e.g. ":9090", empty disables
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration, choosing the format from the
// file extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
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

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}
	if c.Account.FeeRate < 0 || c.Account.FeeRate >= 1 {
		return fmt.Errorf("account.fee_rate must be in [0, 1)")
	}
	if c.Account.Timezone != "" {
		if _, err := time.LoadLocation(c.Account.Timezone); err != nil {
			return fmt.Errorf("account.timezone: %w", err)
		}
	}
	if _, err := c.Limits.ToLimits(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	for user, ov := range c.Users {
		if _, err := ov.ToOverrides(); err != nil {
			return fmt.Errorf("users.%s: %w", user, err)
		}
	}
	for key, ov := range c.Strategies {
		if !strings.Contains(key, "/") {
			return fmt.Errorf("strategies.%s: key must be \"user/strategy\"", key)
		}
		if _, err := ov.ToOverrides(); err != nil {
			return fmt.Errorf("strategies.%s: %w", key, err)
		}
	}
	if _, err := c.Monitor.ParseInterval(); err != nil {
		return fmt.Errorf("monitor.interval: %w", err)
	}
	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	case "csv":
		if c.Journal.EventsFile == "" || c.Journal.FillsFile == "" {
			return fmt.Errorf("journal events_file and fills_file required for csv type")
		}
	case "memory":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'memory'")
	}
	return nil
}

// Location resolves the trading-day timezone, defaulting to UTC.
func (c *Config) Location() *time.Location {
	if c.Account.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Account.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ToLimits converts the YAML-facing limit set into the engine's
// resolved form.
func (l LimitsConfig) ToLimits() (risk.Limits, error) {
	cutoff, err := parseCutoff(l.Cutoff)
	if err != nil {
		return risk.Limits{}, err
	}
	combo := risk.LossComboAny
	if l.DailyLossCombo != "" {
		combo = risk.LossCombo(strings.ToUpper(l.DailyLossCombo))
		if combo != risk.LossComboAny && combo != risk.LossComboBoth {
			return risk.Limits{}, fmt.Errorf("daily_loss_combo must be ANY or BOTH")
		}
	}
	return risk.Limits{
		Enforce:          l.Enforce,
		SquareOff:        l.SquareOff,
		ReduceOnCap:      l.ReduceOnCap,
		MaxDailyLoss:     l.MaxDailyLoss,
		MaxDailyLossPct:  l.MaxDailyLossPct,
		DailyLossCombo:   combo,
		MaxPositionValue: l.MaxPositionValue,
		MaxPositionQty:   l.MaxPositionQty,
		MaxGrossExposure: l.MaxGrossExposure,
		MaxNetExposure:   l.MaxNetExposure,
		MaxOpenOrders:    l.MaxOpenOrders,
		Cutoff:           cutoff,
		ExpirePending:    l.ExpirePending,
	}, nil
}

// ToOverrides converts one override layer.
func (o LimitsOverride) ToOverrides() (*risk.Overrides, error) {
	out := &risk.Overrides{
		Enforce:          o.Enforce,
		SquareOff:        o.SquareOff,
		ReduceOnCap:      o.ReduceOnCap,
		MaxDailyLoss:     o.MaxDailyLoss,
		MaxDailyLossPct:  o.MaxDailyLossPct,
		MaxPositionValue: o.MaxPositionValue,
		MaxPositionQty:   o.MaxPositionQty,
		MaxGrossExposure: o.MaxGrossExposure,
		MaxNetExposure:   o.MaxNetExposure,
		MaxOpenOrders:    o.MaxOpenOrders,
		ExpirePending:    o.ExpirePending,
	}
	if o.DailyLossCombo != nil {
		combo := risk.LossCombo(strings.ToUpper(*o.DailyLossCombo))
		if combo != risk.LossComboAny && combo != risk.LossComboBoth {
			return nil, fmt.Errorf("daily_loss_combo must be ANY or BOTH")
		}
		out.DailyLossCombo = &combo
	}
	if o.Cutoff != nil {
		cutoff, err := parseCutoff(*o.Cutoff)
		if err != nil {
			return nil, err
		}
		out.Cutoff = &cutoff
	}
	return out, nil
}

// parseCutoff parses "HH:MM" into an offset from midnight. Empty means
// no cutoff.
func parseCutoff(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("cutoff %q: want HH:MM: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Default returns a configuration with conservative defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Cash:     1_000_000,
			FeeRate:  0.0005,
			Timezone: "Asia/Kolkata",
		},
		Limits: LimitsConfig{
			Enforce:          true,
			ReduceOnCap:      true,
			MaxDailyLoss:     25_000,
			MaxDailyLossPct:  0.02,
			MaxPositionValue: 500_000,
			MaxPositionQty:   5_000,
			MaxGrossExposure: 2_000_000,
			MaxNetExposure:   1_000_000,
			MaxOpenOrders:    25,
			Cutoff:           "15:20",
			ExpirePending:    true,
		},
		Monitor: MonitorConfig{Interval: "30s"},
		Journal: JournalConfig{Type: "sqlite", DBPath: "./riskgate.sqlite", Buffer: 256},
	}
}
