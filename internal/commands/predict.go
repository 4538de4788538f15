package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/forecast/internal/config"
	"github.com/cleared-dev/forecast/internal/model"
)

type predictOptions struct {
	date    string
	fixture string
	asJSON  bool
	publish bool
}

func newPredictCommand(configPath *string) *cobra.Command {
	var opts predictOptions

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Forecast the main account balance once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, *configPath, opts)
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "target date YYYY-MM-DD (default from config)")
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "read the ledger from a YAML fixture instead of Firefly III")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the prediction as JSON")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "send the result to history and Home Assistant")

	return cmd
}

func runPredict(cmd *cobra.Command, configPath string, opts predictOptions) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)

	req, err := predictionRequest(cfg, opts.date, time.Now())
	if err != nil {
		return err
	}
	target := req.TargetDate

	client, err := newLedger(cfg, opts.fixture, log)
	if err != nil {
		return err
	}
	p, err := newEngine(cfg, client, log).Project(ctx, target)
	if err != nil {
		return fmt.Errorf("predicting %s: %w", target.Format(time.DateOnly), err)
	}

	if opts.publish {
		store, err := openHistory(ctx, cfg, configPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		if err := newSinks(cfg, store, log).Publish(ctx, runID, p); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	return printPrediction(cmd.OutOrStdout(), p, cfg.Publish.HomeAssistant.Currency)
}

func predictionRequest(cfg *config.Config, date string, now time.Time) (model.PredictionRequest, error) {
	if date == "" {
		t, err := cfg.Target(now)
		return model.PredictionRequest{TargetDate: t}, err
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return model.PredictionRequest{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return model.PredictionRequest{TargetDate: t}, nil
}

func printPrediction(w io.Writer, p model.Prediction, currency string) error {
	fmt.Fprintf(w, "Balance on %s: %s %s\n", p.TargetDate.Format(time.DateOnly), p.Balance.StringFixed(2), currency)
	fmt.Fprintf(w, "Based on the balance of %s\n", p.BasisDate.Format(time.DateOnly))
	if p.Past {
		fmt.Fprintln(w, "Target date is not after the balance date; showing the known balance.")
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "step\tchange\trunning\t")
	for _, cp := range p.Checkpoints {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", cp.Step, cp.Delta.StringFixed(2), cp.Running.StringFixed(2))
	}
	return tw.Flush()
}

