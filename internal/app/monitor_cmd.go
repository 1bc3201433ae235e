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

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll recent changes on a fixed interval",
	Long: `Polls the recent-changes API every few seconds for anonymous edits
from government networks. The cursor survives restarts, so a stopped
monitor resumes from where it left off.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	m, err := buildMonitor(config.GetConfig().State.MonitorFile)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := feed.NewPolled(m.client)
	interval := time.Duration(m.cfg.Feed.PollIntervalSeconds) * time.Second

	err = pipeline.RunPolled(ctx, src, m.pipe, m.store, interval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
