package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testStream() *Stream {
	return NewStream("https://stream.example/recentchange", "wikigov-test/1.0", "enwiki", time.Second)
}

func TestStreamDecodeEdit(t *testing.T) {
	raw := []byte(`{
		"wiki": "enwiki",
		"type": "edit",
		"title": "Puget Sound",
		"user": "23.90.88.5",
		"bot": false,
		"timestamp": 1756461600,
		"comment": "updated ferry schedule",
		"id": 777001,
		"revision": {"new": 5002, "old": 5001},
		"length": {"new": 2100, "old": 2000}
	}`)

	ev, ok := testStream().decode(raw)
	require.True(t, ok)
	require.Equal(t, "777001", ev.ID)
	require.Equal(t, "Puget Sound", ev.Title)
	require.Equal(t, "23.90.88.5", ev.User)
	require.Equal(t, "2025-08-29T10:00:00Z", ev.Timestamp)
	require.Equal(t, int64(5002), ev.RevisionID)
	require.Equal(t, int64(5001), ev.ParentID)
	require.Equal(t, 2000, ev.OldSize)
	require.Equal(t, 2100, ev.NewSize)
}

func TestStreamDecodeFilters(t *testing.T) {
	s := testStream()

	cases := []struct {
		name string
		raw  string
	}{
		{"other wiki", `{"wiki":"dewiki","type":"edit","bot":false}`},
		{"bot edit", `{"wiki":"enwiki","type":"edit","bot":true}`},
		{"non-edit", `{"wiki":"enwiki","type":"log","bot":false}`},
		{"garbage", `{{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := s.decode([]byte(tc.raw))
			require.False(t, ok)
		})
	}
}
