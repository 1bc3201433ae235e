package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"wikigov/internal/config"
	"wikigov/internal/database"
	"wikigov/internal/domain"
	"wikigov/internal/feed"
	"wikigov/internal/networks"
	"wikigov/internal/pipeline"
	"wikigov/internal/report"
	"wikigov/internal/screenshot"
	"wikigov/internal/social"
	"wikigov/internal/state"
	"wikigov/internal/support"
)

// monitor holds everything one acquisition mode needs, plus the cleanup
// for resources that hold OS handles.
type monitor struct {
	cfg     config.Config
	level   domain.FilterLevel
	pipe    *pipeline.Pipeline
	store   *state.Store
	client  *feed.Client
	closers []func()
}

func (m *monitor) Close() {
	for _, c := range m.closers {
		c()
	}
}

// buildMonitor assembles the pipeline for the given state file. Optional
// sinks soft-disable: no credentials means no posting, no DATABASE_URL
// means no archive, and the monitor runs on regardless.
func buildMonitor(stateFile string) (*monitor, error) {
	cfg := config.GetConfig()

	level, err := domain.ParseFilterLevel(filterFlag)
	if err != nil {
		return nil, err
	}

	kw := networks.Keywords{
		CongressSubstrings: cfg.Ranges.CongressKeywords,
		CongressExactNames: cfg.Ranges.CongressExactNames,
	}
	classifier, err := networks.LoadFile(cfg.Ranges.File, kw)
	if err != nil {
		return nil, fmt.Errorf("load network ranges: %w", err)
	}
	v4, v6 := classifier.Counts()
	log.Info("Loaded government network ranges", "ipv4", v4, "ipv6", v6, "filter", level.Description())

	detector, err := pipeline.NewDetector(cfg.Detection.PhonePatterns, cfg.Detection.AddressPatterns)
	if err != nil {
		return nil, fmt.Errorf("compile detection patterns: %w", err)
	}

	store := state.Load(stateFile)
	if ts := store.LastTimestamp(); ts != "" {
		log.Info("Resuming from saved state", "last_timestamp", ts, "processed", store.ProcessedCount())
	}

	m := &monitor{cfg: cfg, level: level, store: store}

	var sinks pipeline.Sinks

	if cfg.Screenshots.Enabled {
		capturer := screenshot.New(cfg.Screenshots.Dir, time.Duration(cfg.Screenshots.TimeoutSeconds)*time.Second)
		sinks.Screenshot = capturer
		m.closers = append(m.closers, capturer.Close)
	}

	writer := report.New(cfg.Reports.File, cfg.Reports.SensitiveFile).
		WithCountryDB(support.GetEnv("GEOIP_DB", ""))
	sinks.Report = writer
	m.closers = append(m.closers, writer.Close)

	if cfg.Social.Enabled {
		creds, err := social.LoadCredentials(cfg.Social.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("load social credentials: %w", err)
		}
		if creds == nil {
			log.Warn("Social credentials missing, posting disabled", "file", cfg.Social.CredentialsFile)
		} else {
			sinks.Social = social.New(cfg.Social.ServiceURL, creds, time.Duration(cfg.Social.DelaySeconds)*time.Second)
		}
	}

	if dsn := support.GetEnv("DATABASE_URL", ""); dsn != "" {
		archive, err := database.Open(dsn)
		if err != nil {
			return nil, fmt.Errorf("open edit archive: %w", err)
		}
		sinks.Archive = archive
	}

	m.pipe = pipeline.New(classifier, level, store, detector, sinks, cfg.Feed.DiffBaseURL)
	m.client = feed.NewClient(
		cfg.Feed.APIURL,
		cfg.Feed.UserAgent,
		cfg.Feed.BatchLimit,
		time.Duration(cfg.Feed.APIDelaySeconds*float64(time.Second)),
		time.Duration(cfg.Feed.TimeoutSeconds)*time.Second,
	)
	return m, nil
}
