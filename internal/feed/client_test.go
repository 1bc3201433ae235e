package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wikigov/internal/domain"
)

func newTestClient(url string) *Client {
	return NewClient(url, "wikigov-test/1.0", 500, 0, 5*time.Second)
}

func changesPayload(token string, changes ...map[string]any) []byte {
	payload := map[string]any{
		"query": map[string]any{"recentchanges": changes},
	}
	if token != "" {
		payload["continue"] = map[string]any{"rccontinue": token}
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestRecentChangesMapsEvents(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		require.Equal(t, "wikigov-test/1.0", r.Header.Get("User-Agent"))

		w.Write(changesPayload("", map[string]any{
			"type":      "edit",
			"title":     "Anacortes, Washington",
			"user":      "23.90.88.5",
			"timestamp": "2026-08-29T10:00:00Z",
			"comment":   "fixed a typo",
			"rcid":      1881001,
			"revid":     99002,
			"old_revid": 99001,
			"oldlen":    1000,
			"newlen":    1024,
		}))
	}))
	defer srv.Close()

	events, token, err := newTestClient(srv.URL).RecentChanges(
		context.Background(), "2026-08-29T00:00:00Z", "2026-08-29T12:00:00Z", "")
	require.NoError(t, err)
	require.Empty(t, token)
	require.Len(t, events, 1)

	ev := events[0]
	require.Equal(t, "1881001", ev.ID)
	require.Equal(t, "Anacortes, Washington", ev.Title)
	require.Equal(t, "23.90.88.5", ev.User)
	require.Equal(t, "2026-08-29T10:00:00Z", ev.Timestamp)
	require.Equal(t, int64(99002), ev.RevisionID)
	require.Equal(t, int64(99001), ev.ParentID)
	require.Equal(t, 1000, ev.OldSize)
	require.Equal(t, 1024, ev.NewSize)

	require.Equal(t, "query", gotQuery["action"])
	require.Equal(t, "recentchanges", gotQuery["list"])
	require.Equal(t, "!bot", gotQuery["rcshow"])
	require.Equal(t, "newer", gotQuery["rcdir"])
	require.Equal(t, "2026-08-29T00:00:00Z", gotQuery["rcstart"])
	require.Equal(t, "2026-08-29T12:00:00Z", gotQuery["rcend"])
	require.Equal(t, "500", gotQuery["rclimit"])
}

func TestRecentChangesCarriesContinuation(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			require.Empty(t, r.URL.Query().Get("rccontinue"))
			w.Write(changesPayload("rc|page2", map[string]any{
				"rcid": 1, "timestamp": "2026-08-01T00:00:00Z",
			}))
		default:
			require.Equal(t, "rc|page2", r.URL.Query().Get("rccontinue"))
			w.Write(changesPayload("", map[string]any{
				"rcid": 2, "timestamp": "2026-08-01T01:00:00Z",
			}))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()

	_, token, err := c.RecentChanges(ctx, "", "", "")
	require.NoError(t, err)
	require.Equal(t, "rc|page2", token)

	_, token, err = c.RecentChanges(ctx, "", "", token)
	require.NoError(t, err)
	require.Empty(t, token)
	require.Equal(t, 2, calls)
}

func TestRecentChangesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv.URL).RecentChanges(context.Background(), "", "", "")
	require.Error(t, err)
}

func TestPolledWindowAndCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2026-08-20T00:00:00Z", r.URL.Query().Get("rcstart"))
		require.NotEmpty(t, r.URL.Query().Get("rcend"))
		w.Write(changesPayload("",
			map[string]any{"rcid": 1, "timestamp": "2026-08-20T01:00:00Z"},
			map[string]any{"rcid": 2, "timestamp": "2026-08-20T03:00:00Z"},
			map[string]any{"rcid": 3, "timestamp": "2026-08-20T02:00:00Z"},
		))
	}))
	defer srv.Close()

	p := NewPolled(newTestClient(srv.URL))
	events, next, err := p.Fetch(context.Background(), Cursor{LastTimestamp: "2026-08-20T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "2026-08-20T03:00:00Z", next.LastTimestamp,
		"cursor advances to the batch maximum, not the last element")
}

func TestPolledFailureLeavesCursorUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPolled(newTestClient(srv.URL))
	cur := Cursor{LastTimestamp: "2026-08-20T00:00:00Z"}
	events, next, err := p.Fetch(context.Background(), cur)
	require.Error(t, err)
	require.Empty(t, events)
	require.Equal(t, cur, next)
}

func TestHistoricalDefaultsToLookbackWindow(t *testing.T) {
	var start string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start = r.URL.Query().Get("rcstart")
		w.Write(changesPayload("rc|next", map[string]any{
			"rcid": 10, "timestamp": "2026-08-25T00:00:00Z",
		}))
	}))
	defer srv.Close()

	h := NewHistorical(newTestClient(srv.URL), 30*24*time.Hour)
	h.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	events, next, err := h.Fetch(context.Background(), Cursor{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "2026-07-31T12:00:00Z", start, "window opens lookback days before now")
	require.Equal(t, "rc|next", next.Continuation)
	require.Equal(t, "2026-08-25T00:00:00Z", next.LastTimestamp)
}

func TestHistoricalResumesFromCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2026-08-25T00:00:00Z", r.URL.Query().Get("rcstart"))
		require.Equal(t, "rc|resume", r.URL.Query().Get("rccontinue"))
		w.Write(changesPayload(""))
	}))
	defer srv.Close()

	h := NewHistorical(newTestClient(srv.URL), 30*24*time.Hour)
	events, next, err := h.Fetch(context.Background(), Cursor{
		LastTimestamp: "2026-08-25T00:00:00Z",
		Continuation:  "rc|resume",
	})
	require.NoError(t, err)
	require.Empty(t, events)
	require.Empty(t, next.Continuation, "no token means the backfill is done")
	require.Equal(t, "2026-08-25T00:00:00Z", next.LastTimestamp,
		"empty page never rewinds the cursor")
}

func TestMaxTimestamp(t *testing.T) {
	require.Empty(t, maxTimestamp(nil))
	require.Empty(t, maxTimestamp([]domain.ChangeEvent{{Timestamp: "broken"}}))
	require.Equal(t, "2026-01-02T00:00:00Z", maxTimestamp([]domain.ChangeEvent{
		{Timestamp: "2026-01-01T00:00:00Z"},
		{Timestamp: "broken"},
		{Timestamp: "2026-01-02T00:00:00Z"},
	}))
}
