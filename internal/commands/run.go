package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/forecast/internal/scheduler"
	"github.com/cleared-dev/forecast/internal/server"
)

type runOptions struct {
	fixture  string
	addr     string
	schedule string
	noServer bool
}

func newRunCommand(configPath *string) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast on a schedule and serve the results over HTTP",
		Long: "Runs a forecast immediately and then on the configured schedule, publishing\n" +
			"each result to the history store and Home Assistant. Stops on SIGINT or SIGTERM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, *configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "read the ledger from a YAML fixture instead of Firefly III")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "cron schedule (default from config)")
	cmd.Flags().BoolVar(&opts.noServer, "no-server", false, "do not start the HTTP API")

	return cmd
}

func runDaemon(cmd *cobra.Command, configPath string, opts runOptions) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.schedule != "" {
		cfg.Schedule = opts.schedule
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newLedger(cfg, opts.fixture, logger)
	if err != nil {
		return err
	}
	store, err := openHistory(ctx, cfg, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engine := newEngine(cfg, client, logger)
	runner := scheduler.New(engine, newSinks(cfg, store, logger), scheduler.Options{
		Schedule: cfg.Schedule,
		Target:   cfg.Target,
		Logger:   logger,
	})

	serverErr := make(chan error, 1)
	if !opts.noServer {
		srv := server.New(server.Options{
			Projector: engine,
			Target:    cfg.Target,
			Status:    runner.Status,
			History:   store,
			Logger:    logger,
		})
		go func() { serverErr <- srv.ListenAndServe(ctx, cfg.Server.Addr) }()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(runCtx) }()

	select {
	case err := <-runErr:
		stop()
		if err != nil {
			return err
		}
		return waitServer(serverErr, opts.noServer)
	case err := <-serverErr:
		cancel()
		<-runErr
		if err != nil {
			return fmt.Errorf("serving %s: %w", cfg.Server.Addr, err)
		}
		return nil
	}
}

func waitServer(serverErr <-chan error, disabled bool) error {
	if disabled {
		return nil
	}
	return <-serverErr
}
