package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/forecast/internal/config"
)

const secretsFile = "secrets.yaml"

type initOptions struct {
	mainAccount string
	fireflyURL  string
	salary      string
	salaryDay   int
	format      string
	force       bool
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a starter forecast config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mainAccount, "main-account", "", "name of the main asset account (required)")
	_ = cmd.MarkFlagRequired("main-account")
	cmd.Flags().StringVar(&opts.fireflyURL, "firefly-url", "http://localhost:8080", "Firefly III base URL")
	cmd.Flags().StringVar(&opts.salary, "salary", "0", "expected monthly salary")
	cmd.Flags().IntVar(&opts.salaryDay, "salary-day", 28, "day of month the salary arrives")
	cmd.Flags().StringVar(&opts.format, "format", "yaml", "config format: yaml or toml")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config")

	return cmd
}

func runInit(out io.Writer, dir string, opts initOptions) error {
	var name string
	switch opts.format {
	case "yaml":
		name = "forecast.yaml"
	case "toml":
		name = "forecast.toml"
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	salary, err := decimal.NewFromString(opts.salary)
	if err != nil {
		return fmt.Errorf("parsing salary %q: %w", opts.salary, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	// Write forecast config.
	cfg := config.Default()
	cfg.MainAccountName = opts.mainAccount
	cfg.Ledger.BaseURL = opts.fireflyURL
	cfg.Ledger.AccessTokenFile = filepath.Join(dir, secretsFile)
	cfg.Salary.Amount = salary
	cfg.Salary.DayOfMonth = opts.salaryDay
	cfg.Publish.History.DSN = filepath.Join(dir, "history.db")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write an empty secrets file, unless one is already there.
	secretsPath := filepath.Join(dir, secretsFile)
	if _, err := os.Stat(secretsPath); errors.Is(err, os.ErrNotExist) {
		data, err := yaml.Marshal(config.Secrets{})
		if err != nil {
			return fmt.Errorf("marshaling secrets: %w", err)
		}
		if err := os.WriteFile(secretsPath, data, 0o600); err != nil {
			return fmt.Errorf("writing secrets: %w", err)
		}
	}

	// Write .gitignore.
	gitignore := secretsFile + "\nhistory.db*\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(out, "Initialized forecast config at %s\n", path)
	fmt.Fprintf(out, "Put your Firefly III personal access token in %s\n", secretsPath)
	return nil
}
