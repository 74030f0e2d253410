package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"pixie/internal/archive"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent download outcomes from the archive ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := cmdCtx.openLedger()
			if err != nil {
				return err
			}
			if ledger == nil {
				return fmt.Errorf("archive ledger is disabled; enable [archive] in the configuration")
			}
			defer ledger.Close()

			records, err := ledger.Recent(cmd.Context(), limit, failedOnly)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No recorded downloads")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(records))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of rows to show")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed pages")
	return cmd
}

func renderHistoryTable(records []archive.Record) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		detail := record.Path
		if record.Outcome == archive.OutcomeFailed && record.ErrorMessage != "" {
			detail = truncateDetail(record.ErrorMessage)
		}
		rows = append(rows, []string{
			record.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.FormatInt(record.IllustID, 10),
			strconv.Itoa(record.Page),
			record.Outcome,
			detail,
		})
	}
	return renderTable([]string{"When", "Illust", "Page", "Outcome", "Detail"}, rows, 2, 3)
}

// printSummary reports the run's ledger counts; silent when no ledger is
// wired.
func printSummary(ctx context.Context, out io.Writer, ledger *archive.Store, runID string) {
	if ledger == nil {
		return
	}
	summary, err := ledger.Summarize(ctx, runID)
	if err != nil {
		fmt.Fprintf(out, "summarize run: %v\n", err)
		return
	}
	fmt.Fprintf(out, "%d pages: %d downloaded, %d skipped, %d failed\n",
		summary.Total(), summary.Downloaded, summary.Skipped, summary.Failed)
}
