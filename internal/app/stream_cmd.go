package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"wikigov/internal/config"
	"wikigov/internal/feed"
	"wikigov/internal/pipeline"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Consume the live change stream",
	Long: `Connects to the server-sent-events change stream and processes
qualifying edits as they happen. When the saved cursor is more than the
catch-up threshold behind, a historical backfill runs first so the gap
is not silently skipped.`,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	m, err := buildMonitor(cfg.State.StreamingFile)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream := feed.NewStream(
		cfg.Feed.StreamURL,
		cfg.Feed.UserAgent,
		cfg.Feed.Wiki,
		time.Duration(cfg.Feed.ReconnectDelaySeconds)*time.Second,
	)

	opts := pipeline.StreamOptions{
		CatchUpThreshold: time.Duration(cfg.Catchup.ThresholdDays) * 24 * time.Hour,
		LiveLag:          time.Duration(cfg.Catchup.LiveLagSeconds) * time.Second,
		CatchUp: func(ctx context.Context, gap time.Duration) error {
			days := int(gap/(24*time.Hour)) + 1
			log.Info("Backfilling before streaming", "days", days)
			src := feed.NewHistorical(m.client, time.Duration(days)*24*time.Hour)
			pause := time.Duration(cfg.Feed.APIDelaySeconds * float64(time.Second))
			return pipeline.RunCatchUp(ctx, src, m.pipe, m.store, pause)
		},
	}

	err = pipeline.RunStreaming(ctx, stream, m.pipe, m.store, opts)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
