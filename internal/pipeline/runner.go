package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"wikigov/internal/domain"
	"wikigov/internal/feed"
	"wikigov/internal/state"
)

// saveBestEffort persists state on the way out of a mode; at shutdown a
// failed save is logged, not returned, so it cannot mask the real cause.
func saveBestEffort(store *state.Store) {
	if err := store.Save(); err != nil {
		log.Error("Best-effort state save failed", "err", err)
	}
}

// RunPolled drives the fixed-interval acquisition mode until ctx is
// cancelled. Fetch failures are absorbed: the loop continues on its normal
// interval with an empty batch.
func RunPolled(ctx context.Context, src feed.Source, pipe *Pipeline, store *state.Store, interval time.Duration) error {
	log.Info("Starting polling for government changes", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		cur := feed.Cursor{LastTimestamp: store.LastTimestamp()}
		events, next, err := src.Fetch(ctx, cur)
		if err != nil {
			if ctx.Err() != nil {
				saveBestEffort(store)
				return ctx.Err()
			}
			log.Warn("Fetch failed, retrying next cycle", "err", err)
		} else if len(events) > 0 {
			if _, err := pipe.ProcessBatch(ctx, events); err != nil {
				log.Error("Batch processing failed", "err", err)
			}
			// The cursor tracks fetch progress over all events, not just
			// accepted ones, so an all-civilian batch still advances it.
			store.AdvanceTimestamp(next.LastTimestamp)
			if err := store.Save(); err != nil {
				log.Error("State save failed", "err", err)
			}
		}

		select {
		case <-ctx.Done():
			saveBestEffort(store)
			log.Info("Shutting down", "total_changes", pipe.TotalAccepted())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunHistorical pages through the backfill window until the feed reports no
// continuation token. Qualifying edits go through the persisted pending
// queue so an interrupted backfill resumes sink work where it left off.
// Completion clears the state file.
func RunHistorical(ctx context.Context, src feed.Source, pipe *Pipeline, store *state.Store, pause time.Duration) error {
	if err := runBackfill(ctx, src, pipe, store, pause); err != nil {
		return err
	}
	log.Info("Historical processing complete", "government_edits", store.ProcessedCount())
	if err := store.Clear(); err != nil {
		log.Warn("Could not clear backfill state", "err", err)
	}
	return nil
}

// RunCatchUp is the backfill variant used before live streaming: the
// cursor and dedupe set stay on disk so the stream resumes from the point
// the backfill reached.
func RunCatchUp(ctx context.Context, src feed.Source, pipe *Pipeline, store *state.Store, pause time.Duration) error {
	if err := runBackfill(ctx, src, pipe, store, pause); err != nil {
		return err
	}
	log.Info("Catchup complete", "last_timestamp", store.LastTimestamp())
	return store.Save()
}

func runBackfill(ctx context.Context, src feed.Source, pipe *Pipeline, store *state.Store, pause time.Duration) error {
	log.Info("Starting historical backfill", "queued", store.QueueLen())

	// Resume sink work left over from an interrupted run.
	drainQueue(ctx, pipe, store)

	for {
		if ctx.Err() != nil {
			saveBestEffort(store)
			return ctx.Err()
		}

		cur := feed.Cursor{
			LastTimestamp: store.LastTimestamp(),
			Continuation:  store.ContinuationToken(),
		}
		events, next, err := src.Fetch(ctx, cur)
		if err != nil {
			if ctx.Err() != nil {
				saveBestEffort(store)
				return ctx.Err()
			}
			log.Warn("Backfill fetch failed, retrying", "err", err)
			sleepCtx(ctx, pause)
			continue
		}

		// Timestamp and token land in one durable write: a crash between
		// fetch and persist can cost a page of progress, never a token
		// without its matching timestamp.
		store.AdvanceTimestamp(next.LastTimestamp)
		store.SetContinuationToken(next.Continuation)
		if err := store.Save(); err != nil {
			return fmt.Errorf("persist backfill cursor: %w", err)
		}

		if len(events) > 0 {
			log.Info("Fetched changes", "count", len(events))

			accepted := pipe.Filter(events)
			if len(accepted) > 0 {
				log.Info("Found government edits in this batch", "count", len(accepted))
				for _, ev := range accepted {
					store.MarkProcessed(ev.ID)
				}
				store.PushQueue(accepted...)
			} else {
				log.Debug("No government edits in this batch")
			}
			if err := store.Save(); err != nil {
				return fmt.Errorf("persist backfill batch: %w", err)
			}

			drainQueue(ctx, pipe, store)
		}

		if behind, ok := Gap(store.LastTimestamp(), time.Now().UTC()); ok {
			log.Info("Backfill progress", "behind", behind.Truncate(time.Minute))
		}

		if next.Continuation == "" {
			break
		}

		sleepCtx(ctx, pause)
	}
	return nil
}

// drainQueue runs sink dispatch for queued edits, persisting periodically
// so restart loses at most a handful of in-flight items (dedupe by id makes
// that harmless).
func drainQueue(ctx context.Context, pipe *Pipeline, store *state.Store) {
	processed := 0
	for {
		if ctx.Err() != nil {
			return
		}
		ev, ok := store.PopQueue()
		if !ok {
			break
		}
		pipe.Dispatch(ctx, []domain.ChangeEvent{ev})
		processed++

		if processed%10 == 0 {
			log.Info("Queue progress", "processed", processed, "remaining", store.QueueLen())
			saveBestEffort(store)
		}
	}
	if processed > 0 {
		saveBestEffort(store)
	}
}

// StreamOptions parameterizes live consumption.
type StreamOptions struct {
	// CatchUpThreshold is the gap beyond which a full historical backfill
	// runs synchronously before live consumption starts.
	CatchUpThreshold time.Duration
	// LiveLag distinguishes the "resuming live" log line from "catching
	// up"; purely observability, not a correctness boundary.
	LiveLag time.Duration
	// CatchUp runs the backfill for the given gap. Wired by the caller so
	// the streaming path does not carry the backfill's configuration.
	CatchUp func(ctx context.Context, gap time.Duration) error
}

// RunStreaming consumes the push stream until ctx is cancelled. On startup
// the gap detector decides whether to backfill first.
func RunStreaming(ctx context.Context, stream *feed.Stream, pipe *Pipeline, store *state.Store, opts StreamOptions) error {
	now := time.Now().UTC()
	if ShouldCatchUp(store.LastTimestamp(), now, opts.CatchUpThreshold) && opts.CatchUp != nil {
		gap, _ := Gap(store.LastTimestamp(), now)
		log.Warn("Gap detected, running historical catchup first", "gap", gap.Truncate(time.Hour))
		if err := opts.CatchUp(ctx, gap); err != nil {
			return fmt.Errorf("historical catchup: %w", err)
		}
	}

	if gap, ok := Gap(store.LastTimestamp(), time.Now().UTC()); ok {
		if gap > opts.LiveLag {
			log.Info("Catching up from cursor", "from", store.LastTimestamp(), "behind", gap.Truncate(time.Minute))
		} else {
			log.Info("Resuming live", "from", store.LastTimestamp())
		}
	}

	err := stream.Run(ctx, func(ev domain.ChangeEvent) error {
		if _, err := pipe.ProcessBatch(ctx, []domain.ChangeEvent{ev}); err != nil {
			return err
		}
		// Every stream event advances the cursor so a reconnect or restart
		// resumes from where consumption actually got to.
		store.AdvanceTimestamp(ev.Timestamp)
		return store.Save()
	})

	saveBestEffort(store)
	log.Info("Stream stopped", "total_changes", pipe.TotalAccepted())
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
