package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wikigov/internal/domain"
)

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file disables posting", func(t *testing.T) {
		creds, err := LoadCredentials(filepath.Join(dir, "absent.json"))
		require.NoError(t, err)
		require.Nil(t, creds)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"email":"bot@example.com","password":"hunter2"}`), 0o600))
		creds, err := LoadCredentials(path)
		require.NoError(t, err)
		require.Equal(t, "bot@example.com", creds.Email)
	})

	t.Run("incomplete file errors", func(t *testing.T) {
		path := filepath.Join(dir, "partial.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"email":"bot@example.com"}`), 0o600))
		_, err := LoadCredentials(path)
		require.Error(t, err)
	})
}

func TestPosterDisabledWithoutCredentials(t *testing.T) {
	p := New("https://bsky.social", nil, 0)
	require.False(t, p.Enabled())
	require.NoError(t, p.Post(context.Background(), domain.SocialPost{Title: "x"}))

	var nilPoster *Poster
	require.False(t, nilPoster.Enabled())
}

func TestLinkFacetsByteOffsets(t *testing.T) {
	url := "https://en.wikipedia.org/w/index.php?diff=2&oldid=1"
	// Multi-byte characters before the URL shift byte offsets past rune
	// offsets; the protocol wants bytes.
	text := "Облако article edited.\n\n" + url

	facets := LinkFacets(text, url)
	require.Len(t, facets, 1)
	require.Equal(t, len(text)-len(url), facets[0].Index.ByteStart)
	require.Equal(t, len(text), facets[0].Index.ByteEnd)
	require.Equal(t, "app.bsky.richtext.facet#link", facets[0].Features[0].Type)

	require.Empty(t, LinkFacets("no link here", url))
	require.Empty(t, LinkFacets(text, ""))
}

func TestComposeText(t *testing.T) {
	text := ComposeText(domain.SocialPost{
		Title:        "Anacortes, Washington",
		Organization: "City Of Anacortes",
		DiffURL:      "https://en.wikipedia.org/w/index.php?diff=2&oldid=1",
		Timestamp:    "2026-08-29T14:00:00Z",
	})
	require.Contains(t, text, "Anacortes, Washington Wikipedia article edited anonymously from City Of Anacortes")
	require.Contains(t, text, "Aug 29, 2026")
	require.True(t, strings.HasSuffix(text, "https://en.wikipedia.org/w/index.php?diff=2&oldid=1"))

	noOrg := ComposeText(domain.SocialPost{Title: "T", DiffURL: "u", Timestamp: "bad"})
	require.Contains(t, noOrg, "Unknown Organization")
	require.NotContains(t, noOrg, " on ")
}

func TestPostAgainstFakeServer(t *testing.T) {
	var sessions, uploads, records int
	var lastRecord map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			sessions++
			json.NewEncoder(w).Encode(map[string]string{"accessJwt": "jwt-1", "did": "did:plc:abc"})
		case "/xrpc/com.atproto.repo.uploadBlob":
			uploads++
			require.Equal(t, "image/png", r.Header.Get("Content-Type"))
			require.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{"blob": map[string]string{"ref": "blob-1"}})
		case "/xrpc/com.atproto.repo.createRecord":
			records++
			require.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
			body, _ := io.ReadAll(r.Body)
			var req map[string]any
			require.NoError(t, json.Unmarshal(body, &req))
			require.Equal(t, "did:plc:abc", req["repo"])
			lastRecord = req["record"].(map[string]any)
			json.NewEncoder(w).Encode(map[string]string{"uri": "at://did:plc:abc/app.bsky.feed.post/1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(img, []byte("png-bytes"), 0o644))

	p := New(srv.URL, &Credentials{Email: "bot@example.com", Password: "hunter2"}, 0)
	err := p.Post(context.Background(), domain.SocialPost{
		Title:        "Anacortes, Washington",
		Organization: "City Of Anacortes",
		DiffURL:      "https://en.wikipedia.org/w/index.php?diff=2&oldid=1",
		Timestamp:    "2026-08-29T14:00:00Z",
		ImagePath:    img,
	})
	require.NoError(t, err)

	require.Equal(t, 1, sessions)
	require.Equal(t, 1, uploads)
	require.Equal(t, 1, records)
	require.Equal(t, "app.bsky.feed.post", lastRecord["$type"])
	require.Contains(t, lastRecord["text"], "City Of Anacortes")
	require.NotNil(t, lastRecord["facets"])
	require.NotNil(t, lastRecord["embed"])

	// Second post reuses the session.
	err = p.Post(context.Background(), domain.SocialPost{Title: "T", DiffURL: "u", Timestamp: "2026-08-29T15:00:00Z"})
	require.NoError(t, err)
	require.Equal(t, 1, sessions)
	require.Equal(t, 2, records)
}

func TestPostSkipsOversizedImage(t *testing.T) {
	var uploads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xrpc/com.atproto.server.createSession":
			json.NewEncoder(w).Encode(map[string]string{"accessJwt": "jwt-1", "did": "did:plc:abc"})
		case "/xrpc/com.atproto.repo.uploadBlob":
			uploads++
			json.NewEncoder(w).Encode(map[string]any{"blob": map[string]string{}})
		case "/xrpc/com.atproto.repo.createRecord":
			json.NewEncoder(w).Encode(map[string]string{"uri": "at://x"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	img := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(img, make([]byte, maxImageBytes+1), 0o644))

	p := New(srv.URL, &Credentials{Email: "e", Password: "p"}, 0)
	err := p.Post(context.Background(), domain.SocialPost{Title: "T", DiffURL: "u", ImagePath: img})
	require.NoError(t, err, "oversized image degrades to a text-only post")
	require.Zero(t, uploads)
}

func TestPosterRateLimiterSpacing(t *testing.T) {
	p := New("https://bsky.social", &Credentials{Email: "e", Password: "p"}, 50*time.Millisecond)
	require.NotNil(t, p.limiter)
	require.True(t, p.limiter.Allow())
	require.False(t, p.limiter.Allow(), "second post inside the delay window must wait")
}
