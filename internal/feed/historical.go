package feed

import (
	"context"
	"time"

	"wikigov/internal/domain"
)

// Historical pages through a fixed lookback window of the feed. Each page
// advances the cursor timestamp to the latest event seen and carries the
// feed's continuation token; an empty token in the returned cursor means
// the backfill has reached the present.
type Historical struct {
	client   *Client
	lookback time.Duration
	now      func() time.Time
}

func NewHistorical(client *Client, lookback time.Duration) *Historical {
	return &Historical{client: client, lookback: lookback, now: time.Now}
}

func (h *Historical) Fetch(ctx context.Context, cur Cursor) ([]domain.ChangeEvent, Cursor, error) {
	start := cur.LastTimestamp
	if start == "" {
		start = h.now().UTC().Add(-h.lookback).Format("2006-01-02T15:04:05Z")
	}
	end := h.now().UTC().Format("2006-01-02T15:04:05Z")

	events, token, err := h.client.RecentChanges(ctx, start, end, cur.Continuation)
	if err != nil {
		return nil, cur, err
	}

	next := Cursor{LastTimestamp: cur.LastTimestamp, Continuation: token}
	if ts := maxTimestamp(events); ts != "" {
		next.LastTimestamp = ts
	}
	return events, next, nil
}
