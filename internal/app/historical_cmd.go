package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wikigov/internal/config"
	"wikigov/internal/feed"
	"wikigov/internal/pipeline"
)

var lookbackDays int

var historicalCmd = &cobra.Command{
	Use:   "historical",
	Short: "Backfill government edits from a past window",
	Long: `Pages through the recent-changes API from a starting point in the
past up to now. Progress persists after every page, so an interrupted
backfill resumes without re-fetching; completion clears its state file.`,
	RunE: runHistorical,
}

func init() {
	historicalCmd.Flags().IntVar(&lookbackDays, "days", 0,
		"how many days back to start (0 uses the configured default)")
	rootCmd.AddCommand(historicalCmd)
}

func runHistorical(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	m, err := buildMonitor(cfg.State.HistoricalFile)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	days := lookbackDays
	if days <= 0 {
		days = cfg.Catchup.DefaultLookbackDays
	}

	src := feed.NewHistorical(m.client, time.Duration(days)*24*time.Hour)
	pause := time.Duration(cfg.Feed.APIDelaySeconds * float64(time.Second))

	err = pipeline.RunHistorical(ctx, src, m.pipe, m.store, pause)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
