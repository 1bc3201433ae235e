package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"wikigov/internal/domain"
)

// TimestampLayout is the canonical cursor format: second precision, UTC.
const TimestampLayout = "2006-01-02T15:04:05Z"

// snapshot is the on-disk shape of the processing state.
type snapshot struct {
	LastTimestamp     string               `json:"last_timestamp"`
	ProcessedIDs      []string             `json:"processed_ids"`
	ContinuationToken string               `json:"continuation_token,omitempty"`
	Queue             []domain.ChangeEvent `json:"queue,omitempty"`
}

// Store is the persisted cursor for one ingestion mode: last-seen timestamp,
// the dedupe set of handled edit IDs, an optional pagination token, and the
// pending-work queue. A Store has exactly one writer.
type Store struct {
	path string

	lastTimestamp string
	token         string
	processed     map[string]struct{}
	order         []string
	queue         []domain.ChangeEvent
}

// Load reads the state file at path. A missing or corrupt file yields a
// fresh empty state, never an error: losing the cursor is recoverable,
// refusing to start is not. Invariants are enforced on load regardless of
// how the file was written: a continuation token without a timestamp is
// discarded, as is an unparsable timestamp.
func Load(path string) *Store {
	s := &Store{path: path, processed: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("State file unreadable, starting fresh", "path", path, "err", err)
		}
		return s
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn("State file corrupt, starting fresh", "path", path, "err", err)
		return s
	}

	if snap.LastTimestamp != "" {
		if _, err := time.Parse(time.RFC3339, snap.LastTimestamp); err != nil {
			log.Warn("Invalid timestamp in state, resetting", "value", snap.LastTimestamp)
			snap.LastTimestamp = ""
		}
	}
	if snap.ContinuationToken != "" && snap.LastTimestamp == "" {
		log.Warn("Invalid state: continuation token without timestamp, discarding token")
		snap.ContinuationToken = ""
	}

	s.lastTimestamp = snap.LastTimestamp
	s.token = snap.ContinuationToken
	s.queue = snap.Queue
	for _, id := range snap.ProcessedIDs {
		if _, dup := s.processed[id]; !dup {
			s.processed[id] = struct{}{}
			s.order = append(s.order, id)
		}
	}
	return s
}

// Save persists the state in a single durable write (temp file + rename),
// so the continuation token can never land on disk without its timestamp.
func (s *Store) Save() error {
	snap := snapshot{
		LastTimestamp:     s.lastTimestamp,
		ProcessedIDs:      s.order,
		ContinuationToken: s.token,
		Queue:             s.queue,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Clear removes the state file, used when a historical backfill completes.
func (s *Store) Clear() error {
	s.lastTimestamp = ""
	s.token = ""
	s.processed = make(map[string]struct{})
	s.order = nil
	s.queue = nil

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state: %w", err)
	}
	return nil
}

func (s *Store) LastTimestamp() string { return s.lastTimestamp }

func (s *Store) ContinuationToken() string { return s.token }

func (s *Store) SetContinuationToken(token string) { s.token = token }

// AdvanceTimestamp moves the cursor forward. Moves backward are ignored so
// an empty or out-of-order batch can never rewind ingestion progress.
func (s *Store) AdvanceTimestamp(ts string) {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return
	}
	canonical := parsed.UTC().Format(TimestampLayout)

	if s.lastTimestamp == "" {
		s.lastTimestamp = canonical
		return
	}
	current, err := time.Parse(time.RFC3339, s.lastTimestamp)
	if err != nil || parsed.After(current) {
		s.lastTimestamp = canonical
	}
}

// IsProcessed reports whether an edit ID has already been handled.
func (s *Store) IsProcessed(id string) bool {
	_, ok := s.processed[id]
	return ok
}

// MarkProcessed records edit IDs in the dedupe set. The set only grows
// within a run; it is the dedupe authority across restarts.
func (s *Store) MarkProcessed(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := s.processed[id]; dup {
			continue
		}
		s.processed[id] = struct{}{}
		s.order = append(s.order, id)
	}
}

func (s *Store) ProcessedCount() int { return len(s.processed) }

// PushQueue appends pending events awaiting sink processing.
func (s *Store) PushQueue(events ...domain.ChangeEvent) {
	s.queue = append(s.queue, events...)
}

// PopQueue removes and returns the oldest pending event.
func (s *Store) PopQueue() (domain.ChangeEvent, bool) {
	if len(s.queue) == 0 {
		return domain.ChangeEvent{}, false
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

func (s *Store) QueueLen() int { return len(s.queue) }
