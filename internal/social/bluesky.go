// Package social announces accepted edits on Bluesky over the XRPC HTTP
// API. Posting is best effort and rate limited; a missing credentials file
// disables the poster rather than failing startup.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"wikigov/internal/domain"
)

const maxImageBytes = 1_000_000

// Credentials is the on-disk JSON shape of the account login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoadCredentials reads the credentials file. A missing file returns
// (nil, nil) so callers can treat it as posting-disabled.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("credentials file %s missing email or password", path)
	}
	return &creds, nil
}

// Poster is an XRPC client for one Bluesky account. The session token is
// created lazily on the first post and refreshed on auth failure.
type Poster struct {
	serviceURL string
	creds      *Credentials
	hc         *http.Client
	limiter    *rate.Limiter

	session *session
}

type session struct {
	AccessJwt string `json:"accessJwt"`
	Did       string `json:"did"`
}

// New builds a Poster. A nil creds value yields a disabled poster whose
// Post is never called by the pipeline.
func New(serviceURL string, creds *Credentials, delay time.Duration) *Poster {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Poster{
		serviceURL: strings.TrimRight(serviceURL, "/"),
		creds:      creds,
		hc:         &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

func (p *Poster) Enabled() bool { return p != nil && p.creds != nil }

// Post publishes one edit announcement, embedding the screenshot when one
// exists and is small enough for the blob limit.
func (p *Poster) Post(ctx context.Context, post domain.SocialPost) error {
	if !p.Enabled() {
		return nil
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := p.ensureSession(ctx); err != nil {
		return err
	}

	text := ComposeText(post)
	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}
	if facets := LinkFacets(text, post.DiffURL); len(facets) > 0 {
		record["facets"] = facets
	}

	if post.ImagePath != "" {
		blob, err := p.uploadImage(ctx, post.ImagePath)
		if err != nil {
			log.Warn("Posting without image", "path", post.ImagePath, "err", err)
		} else {
			record["embed"] = map[string]any{
				"$type": "app.bsky.embed.images",
				"images": []map[string]any{{
					"alt":   fmt.Sprintf("Screenshot of the edit to %s", post.Title),
					"image": blob,
				}},
			}
		}
	}

	body := map[string]any{
		"repo":       p.session.Did,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}
	var out struct {
		URI string `json:"uri"`
	}
	if err := p.xrpc(ctx, "com.atproto.repo.createRecord", "application/json", mustJSON(body), &out); err != nil {
		// Expired session gets one refresh.
		p.session = nil
		if err := p.ensureSession(ctx); err != nil {
			return err
		}
		body["repo"] = p.session.Did
		if err := p.xrpc(ctx, "com.atproto.repo.createRecord", "application/json", mustJSON(body), &out); err != nil {
			return err
		}
	}

	log.Info("Posted to Bluesky", "title", post.Title, "uri", out.URI)
	return nil
}

func (p *Poster) ensureSession(ctx context.Context) error {
	if p.session != nil {
		return nil
	}
	payload := mustJSON(map[string]string{
		"identifier": p.creds.Email,
		"password":   p.creds.Password,
	})
	var sess session
	if err := p.xrpc(ctx, "com.atproto.server.createSession", "application/json", payload, &sess); err != nil {
		return fmt.Errorf("bluesky login: %w", err)
	}
	p.session = &sess
	log.Debug("Bluesky session established", "did", sess.Did)
	return nil
}

func (p *Poster) uploadImage(ctx context.Context, path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image is %d bytes, limit is %d", len(data), maxImageBytes)
	}
	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := p.xrpc(ctx, "com.atproto.repo.uploadBlob", "image/png", data, &out); err != nil {
		return nil, err
	}
	return out.Blob, nil
}

func (p *Poster) xrpc(ctx context.Context, method, contentType string, body []byte, out any) error {
	url := p.serviceURL + "/xrpc/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if p.session != nil {
		req.Header.Set("Authorization", "Bearer "+p.session.AccessJwt)
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("xrpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("xrpc %s: status %d %s %s", method, resp.StatusCode, apiErr.Error, apiErr.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
