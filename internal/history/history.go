// Package history persists capture records and serves the most recent ones.
package history

import (
	"context"

	"github.com/cankoe/misuse-recorder/internal/models"
)

// DefaultLimit is the number of records shown on the dashboard.
const DefaultLimit = 100

// Store is an append-only log of capture records. Implementations assign
// strictly increasing IDs and are safe for concurrent Append calls.
type Store interface {
	Append(ctx context.Context, rec *models.CaptureRecord) error
	RecentHistory(ctx context.Context, limit int) ([]models.CaptureRecord, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
