package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DateFormat is the layout of configured dates.
const DateFormat = "2006-01-02"

// Config represents the top-level forecast.yaml configuration.
type Config struct {
	MainAccountName string           `yaml:"main_account_name" toml:"main_account_name"`
	Ledger          LedgerConfig     `yaml:"ledger" toml:"ledger"`
	Salary          SalaryConfig     `yaml:"salary" toml:"salary"`
	Prediction      PredictionConfig `yaml:"prediction" toml:"prediction"`
	Schedule        string           `yaml:"schedule" toml:"schedule"`
	Publish         PublishConfig    `yaml:"publish" toml:"publish"`
	Server          ServerConfig     `yaml:"server" toml:"server"`
	Log             LogConfig        `yaml:"log" toml:"log"`
}

// LedgerConfig points at the Firefly III instance.
type LedgerConfig struct {
	BaseURL         string        `yaml:"base_url" toml:"base_url"`
	AccessToken     string        `yaml:"access_token,omitempty" toml:"access_token,omitempty"`
	AccessTokenFile string        `yaml:"access_token_file,omitempty" toml:"access_token_file,omitempty"`
	PageLimit       int           `yaml:"page_limit" toml:"page_limit"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
}

// SalaryConfig describes the expected monthly income and how to detect it.
type SalaryConfig struct {
	Amount        decimal.Decimal `yaml:"amount" toml:"amount"`
	DayOfMonth    int             `yaml:"day_of_month" toml:"day_of_month"`
	ProximityDays int             `yaml:"proximity_days" toml:"proximity_days"`
	LookbackDays  int             `yaml:"lookback_days" toml:"lookback_days"`
	ToleranceLow  decimal.Decimal `yaml:"tolerance_low" toml:"tolerance_low"`
	ToleranceHigh decimal.Decimal `yaml:"tolerance_high" toml:"tolerance_high"`
}

// PredictionConfig selects the date to forecast. TargetDate wins over
// HorizonDays when both are set.
type PredictionConfig struct {
	TargetDate  string `yaml:"target_date,omitempty" toml:"target_date,omitempty"` // "YYYY-MM-DD"
	HorizonDays int    `yaml:"horizon_days,omitempty" toml:"horizon_days,omitempty"`
}

// PublishConfig controls where results go.
type PublishConfig struct {
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant" toml:"home_assistant"`
	History       HistoryConfig       `yaml:"history" toml:"history"`
}

// HomeAssistantConfig addresses the sensor entity that receives the forecast.
type HomeAssistantConfig struct {
	URL      string `yaml:"url,omitempty" toml:"url,omitempty"`
	Token    string `yaml:"token,omitempty" toml:"token,omitempty"`
	EntityID string `yaml:"entity_id" toml:"entity_id"`
	Currency string `yaml:"currency" toml:"currency"`
}

// HistoryConfig selects the prediction history database.
type HistoryConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn,omitempty" toml:"dsn,omitempty"`
}

// ServerConfig controls the HTTP API of the daemon.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// Load reads a forecast.yaml (or .toml) file from disk on top of Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if isTOML(path) {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML or TOML file, chosen by extension.
func Save(path string, cfg *Config) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new installation.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			PageLimit: 100,
			Timeout:   30 * time.Second,
		},
		Salary: SalaryConfig{
			ProximityDays: 10,
			LookbackDays:  10,
			ToleranceLow:  decimal.RequireFromString("0.8"),
			ToleranceHigh: decimal.RequireFromString("1.2"),
		},
		Prediction: PredictionConfig{
			HorizonDays: 30,
		},
		Schedule: "@hourly",
		Publish: PublishConfig{
			HomeAssistant: HomeAssistantConfig{
				EntityID: "sensor.firefly3_main_account_future",
				Currency: "EUR",
			},
			History: HistoryConfig{
				Driver: "sqlite",
			},
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8788",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyEnv overrides connection settings from the environment.
// getenv is usually os.LookupEnv.
func (c *Config) ApplyEnv(getenv func(string) (string, bool)) {
	if v, ok := getenv("FIREFLY_URL"); ok {
		c.Ledger.BaseURL = v
	}
	if v, ok := getenv("FIREFLY_TOKEN"); ok {
		c.Ledger.AccessToken = v
	}
	if v, ok := getenv("HASS_URL"); ok {
		c.Publish.HomeAssistant.URL = v
	}
	if v, ok := getenv("HASS_TOKEN"); ok {
		c.Publish.HomeAssistant.Token = v
	}
	if v, ok := getenv("FORECAST_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
}

// Validate checks the settings the projection needs.
func (c *Config) Validate() error {
	var errs []error
	if c.MainAccountName == "" {
		errs = append(errs, errors.New("main_account_name is required"))
	}
	if c.Salary.DayOfMonth < 1 || c.Salary.DayOfMonth > 31 {
		errs = append(errs, fmt.Errorf("salary.day_of_month must be 1-31, got %d", c.Salary.DayOfMonth))
	}
	if c.Salary.Amount.IsNegative() {
		errs = append(errs, errors.New("salary.amount must not be negative"))
	}
	if c.Salary.ProximityDays < 0 || c.Salary.LookbackDays < 0 {
		errs = append(errs, errors.New("salary proximity_days and lookback_days must not be negative"))
	}
	if c.Salary.ToleranceLow.GreaterThanOrEqual(c.Salary.ToleranceHigh) {
		errs = append(errs, fmt.Errorf("salary.tolerance_low (%s) must be below tolerance_high (%s)",
			c.Salary.ToleranceLow, c.Salary.ToleranceHigh))
	}
	if c.Prediction.TargetDate != "" {
		if _, err := time.Parse(DateFormat, c.Prediction.TargetDate); err != nil {
			errs = append(errs, fmt.Errorf("prediction.target_date: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Target resolves the configured prediction date relative to now.
func (c *Config) Target(now time.Time) (time.Time, error) {
	if c.Prediction.TargetDate != "" {
		t, err := time.ParseInLocation(DateFormat, c.Prediction.TargetDate, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing target date: %w", err)
		}
		return t, nil
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+c.Prediction.HorizonDays, 0, 0, 0, 0, now.Location()), nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
