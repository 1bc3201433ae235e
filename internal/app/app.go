// Package app wires configuration, the classifier, state, and sinks into
// the three acquisition modes and exposes them as CLI commands.
package app

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wikigov/internal/config"
)

var filterFlag string

var rootCmd = &cobra.Command{
	Use:   "wikigov",
	Short: "Monitor Wikipedia edits made from government networks",
	Long: `wikigov watches Wikipedia's recent changes for anonymous edits whose
IP addresses fall inside known government network ranges, classifies the
editing organization, and records each hit to CSV reports, screenshots,
an optional database archive, and an optional Bluesky account.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&filterFlag, "filter", "all",
		"network filter level: all, federal, or congress")
}

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	configureLogLevel()
	config.ReadSettings()

	return rootCmd.Execute()
}

func configureLogLevel() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
