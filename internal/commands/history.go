package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/forecast/internal/history"
)

func newHistoryCommand(configPath *string) *cobra.Command {
	var limit int
	var asCSV bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List published predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := openHistory(cmd.Context(), cfg, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asCSV {
				return history.WriteRecords(cmd.OutOrStdout(), records)
			}
			return printHistory(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records, 0 for all")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")

	return cmd
}

func printHistory(w io.Writer, records []history.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No predictions recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tTARGET\tBALANCE\tBASIS\tRUN")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.RecordedAt.Local().Format("2006-01-02 15:04"),
			r.TargetDate.Format(time.DateOnly),
			r.Balance.StringFixed(2),
			r.BasisDate.Format(time.DateOnly),
			r.RunID,
		)
	}
	return tw.Flush()
}
