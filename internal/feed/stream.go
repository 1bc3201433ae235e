package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	sse "github.com/r3labs/sse/v2"
	backoff "gopkg.in/cenkalti/backoff.v1"

	"wikigov/internal/domain"
)

// Stream consumes the wiki's push feed over SSE. Transport failures are
// never fatal: the client reconnects after a fixed backoff and resumes.
// Bot edits and events from other wikis are dropped before the handler
// sees them.
type Stream struct {
	url       string
	userAgent string
	wiki      string
	reconnect time.Duration
}

func NewStream(url, userAgent, wiki string, reconnect time.Duration) *Stream {
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	return &Stream{url: url, userAgent: userAgent, wiki: wiki, reconnect: reconnect}
}

// Run blocks consuming the stream until ctx is cancelled, delivering one
// event at a time to handler. Handler errors are logged and consumption
// continues; a stalled downstream must not kill the connection.
func (s *Stream) Run(ctx context.Context, handler func(domain.ChangeEvent) error) error {
	client := sse.NewClient(s.url)
	client.Headers["User-Agent"] = s.userAgent
	client.ReconnectStrategy = backoff.NewConstantBackOff(s.reconnect)
	client.ReconnectNotify = func(err error, wait time.Duration) {
		log.Warn("Stream connection lost, reconnecting", "wait", wait, "err", err)
	}

	log.Info("Connecting to change stream", "url", s.url)

	return client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		ev, ok := s.decode(msg.Data)
		if !ok {
			return
		}
		if err := handler(ev); err != nil {
			log.Error("Stream event handling failed", "title", ev.Title, "err", err)
		}
	})
}

// streamChange is the push feed's event payload shape.
type streamChange struct {
	Wiki      string `json:"wiki"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	User      string `json:"user"`
	Bot       bool   `json:"bot"`
	Timestamp int64  `json:"timestamp"`
	Comment   string `json:"comment"`
	ID        int64  `json:"id"`
	Revision  struct {
		New int64 `json:"new"`
		Old int64 `json:"old"`
	} `json:"revision"`
	Length struct {
		New int `json:"new"`
		Old int `json:"old"`
	} `json:"length"`
}

// decode parses a raw stream payload and applies the upstream filters:
// only edits, only the configured wiki, never bot-tagged changes.
func (s *Stream) decode(data []byte) (domain.ChangeEvent, bool) {
	var change streamChange
	if err := json.Unmarshal(data, &change); err != nil {
		log.Debug("Unparsable stream event", "err", err)
		return domain.ChangeEvent{}, false
	}

	if change.Wiki != s.wiki || change.Bot || change.Type != "edit" {
		return domain.ChangeEvent{}, false
	}

	ts := time.Unix(change.Timestamp, 0).UTC().Format("2006-01-02T15:04:05Z")

	return domain.ChangeEvent{
		ID:         strconv.FormatInt(change.ID, 10),
		Title:      change.Title,
		User:       change.User,
		Timestamp:  ts,
		Comment:    change.Comment,
		RevisionID: change.Revision.New,
		ParentID:   change.Revision.Old,
		OldSize:    change.Length.Old,
		NewSize:    change.Length.New,
	}, true
}
