package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"wikigov/internal/domain"
)

const maxResponseBytes = 20 << 20 // safety cap on feed responses

// Client talks to the MediaWiki recentchanges API. All calls go through a
// shared token bucket so the feed's throttle is respected regardless of
// which source variant is driving.
type Client struct {
	apiURL     string
	userAgent  string
	batchLimit int

	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a feed client. apiDelay is the minimum spacing between
// API calls; timeout bounds each request.
func NewClient(apiURL, userAgent string, batchLimit int, apiDelay, timeout time.Duration) *Client {
	if batchLimit <= 0 {
		batchLimit = 500
	}
	limit := rate.Inf
	if apiDelay > 0 {
		limit = rate.Every(apiDelay)
	}
	return &Client{
		apiURL:     apiURL,
		userAgent:  userAgent,
		batchLimit: batchLimit,
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// recentChangesResponse mirrors the slice of the API payload we consume.
type recentChangesResponse struct {
	Continue struct {
		RcContinue string `json:"rccontinue"`
	} `json:"continue"`
	Query struct {
		RecentChanges []apiChange `json:"recentchanges"`
	} `json:"query"`
}

type apiChange struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment"`
	RcID      int64  `json:"rcid"`
	RevID     int64  `json:"revid"`
	OldRevID  int64  `json:"old_revid"`
	OldLen    int    `json:"oldlen"`
	NewLen    int    `json:"newlen"`
}

// RecentChanges fetches one page of changes inside [start, end]. Either
// bound may be empty; continuation resumes a previous page walk. It returns
// the events in feed order and the next continuation token ("" when the
// feed reports no more pages).
func (c *Client) RecentChanges(ctx context.Context, start, end, continuation string) ([]domain.ChangeEvent, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "recentchanges")
	params.Set("rcprop", "title|ids|sizes|flags|user|timestamp|comment")
	params.Set("rcshow", "!bot")
	params.Set("rclimit", strconv.Itoa(c.batchLimit))
	params.Set("format", "json")
	params.Set("rcdir", "newer")
	if start != "" {
		params.Set("rcstart", start)
	}
	if end != "" {
		params.Set("rcend", end)
	}
	if continuation != "" {
		params.Set("rccontinue", continuation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch recent changes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read feed response: %w", err)
	}

	var payload recentChangesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, "", fmt.Errorf("decode feed response: %w", err)
	}

	events := make([]domain.ChangeEvent, 0, len(payload.Query.RecentChanges))
	for _, rc := range payload.Query.RecentChanges {
		events = append(events, domain.ChangeEvent{
			ID:         strconv.FormatInt(rc.RcID, 10),
			Title:      rc.Title,
			User:       rc.User,
			Timestamp:  rc.Timestamp,
			Comment:    rc.Comment,
			RevisionID: rc.RevID,
			ParentID:   rc.OldRevID,
			OldSize:    rc.OldLen,
			NewSize:    rc.NewLen,
		})
	}

	return events, payload.Continue.RcContinue, nil
}

// maxTimestamp returns the latest timestamp in the batch, or "" when the
// batch is empty or carries no parsable timestamps.
func maxTimestamp(events []domain.ChangeEvent) string {
	var best time.Time
	var found bool
	for _, ev := range events {
		ts, err := time.Parse(time.RFC3339, ev.Timestamp)
		if err != nil {
			continue
		}
		if !found || ts.After(best) {
			best = ts
			found = true
		}
	}
	if !found {
		return ""
	}
	return best.UTC().Format("2006-01-02T15:04:05Z")
}
