package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/forecast/internal/config"
	"github.com/cleared-dev/forecast/internal/forecast"
	"github.com/cleared-dev/forecast/internal/history"
	"github.com/cleared-dev/forecast/internal/ledger"
	"github.com/cleared-dev/forecast/internal/publish"
)

// loadConfig reads the config file, applies environment overrides and
// validates the result.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to w, which is stderr for
// the CLI so stdout stays clean for results.
func newLogger(w io.Writer, cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("parsing log level: %w", err)
		}
	}
	logger.SetLevel(level)
	return logger, nil
}

// newLedger returns a Firefly III client, or an offline ledger when
// fixture is set.
func newLedger(cfg *config.Config, fixture string, log logrus.FieldLogger) (ledger.Client, error) {
	if fixture != "" {
		m, err := ledger.LoadFixture(fixture)
		if err != nil {
			return nil, err
		}
		log.WithField("fixture", fixture).Info("using offline ledger")
		return m, nil
	}

	if cfg.Ledger.BaseURL == "" {
		return nil, errors.New("ledger.base_url is required (or set FIREFLY_URL)")
	}
	if err := cfg.ResolveTokens(); err != nil {
		return nil, err
	}
	return ledger.NewFirefly(ledger.FireflyOptions{
		BaseURL:   cfg.Ledger.BaseURL,
		Token:     cfg.Ledger.AccessToken,
		PageLimit: cfg.Ledger.PageLimit,
		Timeout:   cfg.Ledger.Timeout,
		Logger:    log,
	}), nil
}

func newEngine(cfg *config.Config, client ledger.Client, log logrus.FieldLogger) *forecast.Engine {
	return forecast.NewEngine(client, forecast.SettingsFrom(cfg), forecast.WithLogger(log))
}

// historyDSN defaults the sqlite database next to the config file.
func historyDSN(cfg *config.Config, configPath string) string {
	if cfg.Publish.History.DSN != "" || cfg.Publish.History.Driver != history.DriverSQLite {
		return cfg.Publish.History.DSN
	}
	return filepath.Join(filepath.Dir(configPath), "history.db")
}

func openHistory(ctx context.Context, cfg *config.Config, configPath string) (*history.Store, error) {
	store, err := history.Open(ctx, cfg.Publish.History.Driver, historyDSN(cfg, configPath))
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return store, nil
}

// newSinks wires the configured publishers. Home Assistant is skipped when
// no URL is configured. History comes last so it only records runs that
// reached every other sink.
func newSinks(cfg *config.Config, store *history.Store, log logrus.FieldLogger) publish.Multi {
	var sinks publish.Multi
	if ha := cfg.Publish.HomeAssistant; ha.URL != "" {
		sinks = append(sinks, publish.NewHomeAssistant(publish.HomeAssistantOptions{
			URL:      ha.URL,
			Token:    ha.Token,
			EntityID: ha.EntityID,
			Currency: ha.Currency,
			Timeout:  cfg.Ledger.Timeout,
			Logger:   log,
		}))
	} else {
		log.Debug("home assistant url not set, not publishing there")
	}
	if store != nil {
		sinks = append(sinks, store)
	}
	return sinks
}

