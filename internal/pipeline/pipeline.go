package pipeline

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"wikigov/internal/domain"
	"wikigov/internal/networks"
	"wikigov/internal/state"
)

// ScreenshotSink captures a visual diff for an accepted edit and returns
// the stored file path.
type ScreenshotSink interface {
	Capture(ev domain.ChangeEvent, diffURL string) (string, error)
}

// ReportSink appends accepted edits to the tabular report.
type ReportSink interface {
	Append(rows []domain.ReportRow) error
}

// SocialSink publishes accepted edits. Enabled is false when the sink's
// credential source is absent; absence is a soft-disable, not an error.
type SocialSink interface {
	Enabled() bool
	Post(ctx context.Context, post domain.SocialPost) error
}

// ArchiveSink records accepted edits durably for later analysis.
type ArchiveSink interface {
	Record(ctx context.Context, rows []domain.ReportRow) error
}

// Sinks groups the external collaborators. Any field may be nil; a missing
// sink is simply skipped.
type Sinks struct {
	Screenshot ScreenshotSink
	Report     ReportSink
	Social     SocialSink
	Archive    ArchiveSink
}

// Pipeline classifies, deduplicates and dispatches change events. It owns
// the processing state: all mutation of the cursor and dedupe set happens
// on the single goroutine calling ProcessBatch.
type Pipeline struct {
	classifier *networks.Classifier
	level      domain.FilterLevel
	store      *state.Store
	detector   *Detector
	sinks      Sinks
	diffBase   string

	totalAccepted int
}

func New(classifier *networks.Classifier, level domain.FilterLevel, store *state.Store, detector *Detector, sinks Sinks, diffBase string) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		level:      level,
		store:      store,
		detector:   detector,
		sinks:      sinks,
		diffBase:   diffBase,
	}
}

// Filter returns the subset of events that qualify: not already processed,
// editor is an address literal, and the address matches the active filter
// level. Order is preserved.
func (p *Pipeline) Filter(events []domain.ChangeEvent) []domain.ChangeEvent {
	var accepted []domain.ChangeEvent
	for _, ev := range events {
		if p.store.IsProcessed(ev.ID) {
			continue
		}
		if !networks.IsAddress(ev.User) {
			// Named accounts are out of scope for classification.
			continue
		}
		if !p.classifier.Matches(ev.User, p.level) {
			continue
		}
		accepted = append(accepted, ev)
	}
	return accepted
}

// ProcessBatch runs one ingestion cycle over a fetched batch: filter,
// update the dedupe set and cursor, persist, then hand the qualifying
// events to the sinks. Sink failures degrade but never undo bookkeeping,
// so a failing screenshot or post cannot cause an edit to be reprocessed
// forever. Returns the accepted events.
func (p *Pipeline) ProcessBatch(ctx context.Context, events []domain.ChangeEvent) ([]domain.ChangeEvent, error) {
	accepted := p.Filter(events)

	// Bookkeeping first: ids, cursor, persist. A crash after this point
	// re-delivers nothing; a crash before it re-delivers the whole batch,
	// which dedupe by id makes safe.
	for _, ev := range accepted {
		p.store.MarkProcessed(ev.ID)
		p.store.AdvanceTimestamp(ev.Timestamp)
	}
	if len(accepted) > 0 {
		if err := p.store.Save(); err != nil {
			return accepted, fmt.Errorf("persist state: %w", err)
		}
		p.logAccepted(accepted)
	}

	p.Dispatch(ctx, accepted)
	return accepted, nil
}

// Dispatch hands events to the external sinks, one at a time, blocking.
// A slow screenshot or post delays the next fetch cycle; that throughput
// ceiling is accepted for this feed's edit rate.
func (p *Pipeline) Dispatch(ctx context.Context, events []domain.ChangeEvent) {
	for _, ev := range events {
		p.dispatchOne(ctx, ev)
		p.totalAccepted++
	}
}

func (p *Pipeline) dispatchOne(ctx context.Context, ev domain.ChangeEvent) {
	_, org := p.classifier.Classify(ev.User)
	diffURL := DiffURL(p.diffBase, ev.RevisionID, ev.ParentID)

	var screenshotPath string
	if p.sinks.Screenshot != nil {
		path, err := p.sinks.Screenshot.Capture(ev, diffURL)
		if err != nil {
			log.Warn("Screenshot failed, continuing without image", "title", ev.Title, "err", err)
		} else {
			screenshotPath = path
		}
	}

	sensitive, matches := false, []domain.SensitiveMatch(nil)
	if p.detector != nil {
		sensitive, matches = p.detector.Detect(ev.Comment, KnownIDs(ev))
	}

	row := domain.ReportRow{
		Event:          ev,
		Organization:   org,
		DiffURL:        diffURL,
		ScreenshotPath: screenshotPath,
		Sensitive:      sensitive,
		Matches:        matches,
	}

	if p.sinks.Report != nil {
		if err := p.sinks.Report.Append([]domain.ReportRow{row}); err != nil {
			log.Error("Report write failed", "title", ev.Title, "err", err)
		}
	}

	if p.sinks.Archive != nil {
		if err := p.sinks.Archive.Record(ctx, []domain.ReportRow{row}); err != nil {
			log.Error("Archive write failed", "title", ev.Title, "err", err)
		}
	}

	if p.sinks.Social != nil && p.sinks.Social.Enabled() {
		post := domain.SocialPost{
			Title:        ev.Title,
			Organization: org,
			DiffURL:      diffURL,
			Timestamp:    ev.Timestamp,
			ImagePath:    screenshotPath,
		}
		if err := p.sinks.Social.Post(ctx, post); err != nil {
			log.Error("Social post failed, skipping", "title", ev.Title, "err", err)
		}
	}
}

func (p *Pipeline) logAccepted(events []domain.ChangeEvent) {
	log.Info("GOVERNMENT EDIT DETECTED", "count", len(events))
	for _, ev := range events {
		_, org := p.classifier.Classify(ev.User)
		log.Info("Government edit",
			"title", ev.Title,
			"ip", ev.User,
			"org", org,
			"time", ev.Timestamp,
			"comment", truncate(ev.Comment, 100),
		)
	}
}

// TotalAccepted reports how many edits were dispatched during this run.
func (p *Pipeline) TotalAccepted() int { return p.totalAccepted }

// DiffURL builds the wiki's visual diff URL for a revision pair.
func DiffURL(base string, revID, parentID int64) string {
	return fmt.Sprintf("%s?diff=%d&oldid=%d", base, revID, parentID)
}

// Organization resolves the owning organization for an address, for callers
// outside the batch path.
func (p *Pipeline) Organization(address string) string {
	_, org := p.classifier.Classify(address)
	return org
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
