package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	"github.com/AndreyKarmanov/aw-garmin/internal/syncer"
	"github.com/AndreyKarmanov/aw-garmin/internal/watermark"
)

var (
	syncDate     string
	syncDaysBack int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass and exit",
	Long: `Run one sync pass over a window of dates and exit. Suitable for cron or a systemd timer.

Examples:
  aw-garmin sync                   # today and DAYS_BACK days before it
  aw-garmin sync --days-back 7     # the last week
  aw-garmin sync --date 2024-01-10 # exactly one date`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := syncer.RunOptions{DaysBack: cfg.DaysBack}
		if cmd.Flags().Changed("days-back") {
			opts.DaysBack = syncDaysBack
		}
		if syncDate != "" {
			date, err := syncer.ParseDate(syncDate)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			opts.Date = &date
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSync(ctx, cmd.OutOrStdout(), opts)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncDate, "date", "", "sync only this date (YYYY-MM-DD)")
	syncCmd.Flags().IntVar(&syncDaysBack, "days-back", 0, "number of days before today to include (overrides DAYS_BACK)")
}

func runSync(ctx context.Context, out io.Writer, opts syncer.RunOptions) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.orchestrator.Run(ctx, opts)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	return nil
}

func printSummary(out io.Writer, summary syncer.Summary) {
	for _, stream := range domain.Streams {
		fmt.Fprintf(out, "%-9s inserted %d, skipped %d\n", stream, summary.Inserted[stream], summary.Skipped[stream])
	}
	fmt.Fprintf(out, "Sync complete: %d events inserted over %d day(s)\n", summary.EventsInserted, len(summary.Dates))
	if summary.WatermarkAdvanced {
		printWatermarks(out, summary.Watermarks)
	}
}

func printWatermarks(out io.Writer, state watermark.State) {
	for _, stream := range domain.Streams {
		value := "never synced"
		if ts := state.Get(stream); ts != nil {
			value = ts.UTC().Format(watermark.TimeLayout)
		}
		fmt.Fprintf(out, "  %-9s watermark %s\n", stream, value)
	}
}
