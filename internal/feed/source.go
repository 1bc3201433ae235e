package feed

import (
	"context"

	"wikigov/internal/domain"
)

// Cursor describes how far ingestion has progressed: the last accepted
// timestamp and, for paginated sources, a continuation token.
type Cursor struct {
	LastTimestamp string
	Continuation  string
}

// Source produces ordered batches of change events from the external feed.
// Each implementation owns its own pagination contract but emits the same
// event shape. Fetch returns the advanced cursor alongside the batch; the
// caller decides how failures are absorbed per mode.
type Source interface {
	Fetch(ctx context.Context, cur Cursor) ([]domain.ChangeEvent, Cursor, error)
}
