package domain

// ChangeEvent is one edit record from the wiki change feed, normalized across
// the polling API and the push stream. Events are read-only after creation.
type ChangeEvent struct {
	// ID is the feed's change identifier (rcid for the polling API, the
	// event id for the stream). It is the dedupe key across restarts.
	ID        string `json:"id"`
	Title     string `json:"title"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment"`

	RevisionID int64 `json:"revision_id"`
	ParentID   int64 `json:"parent_id"`
	OldSize    int   `json:"old_size"`
	NewSize    int   `json:"new_size"`
}
