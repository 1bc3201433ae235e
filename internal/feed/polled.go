package feed

import (
	"context"
	"time"

	"wikigov/internal/domain"
)

// Polled asks the feed for everything between the cursor's timestamp and
// now on each call. With no prior timestamp the window start is unbounded.
type Polled struct {
	client *Client
	now    func() time.Time
}

func NewPolled(client *Client) *Polled {
	return &Polled{client: client, now: time.Now}
}

func (p *Polled) Fetch(ctx context.Context, cur Cursor) ([]domain.ChangeEvent, Cursor, error) {
	end := p.now().UTC().Format("2006-01-02T15:04:05Z")

	events, _, err := p.client.RecentChanges(ctx, cur.LastTimestamp, end, "")
	if err != nil {
		return nil, cur, err
	}

	next := cur
	if ts := maxTimestamp(events); ts != "" {
		next.LastTimestamp = ts
	}
	return events, next, nil
}
