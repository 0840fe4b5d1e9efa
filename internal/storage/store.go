// Package storage provides SQLite-based persistent storage for palette.
// It holds the visit history behind the history and top-sites providers
// and the per-command enablement settings.
package storage

import (
	"context"
	"errors"
)

// ErrVisitNotFound is returned when a visit does not exist.
var ErrVisitNotFound = errors.New("visit not found")

// Store defines the interface for all storage operations.
type Store interface {
	// Visits
	RecordVisit(ctx context.Context, url, title string) (*Visit, error)
	GetVisit(ctx context.Context, id string) (*Visit, error)
	QueryVisits(ctx context.Context, q VisitQuery) ([]Visit, error)
	TopSites(ctx context.Context, limit int) ([]Visit, error)
	DeleteVisit(ctx context.Context, id string) error
	ClearVisits(ctx context.Context) (int64, error)

	// Command settings
	IsEnabled(ctx context.Context, commandID string) (bool, error)
	SetCommandEnabled(ctx context.Context, commandID string, enabled bool) error
	CommandSettings(ctx context.Context) (map[string]bool, error)

	// Lifecycle
	Close() error
}

// Visit is one URL in the visit history. Repeat visits to the same URL
// update the existing row.
type Visit struct {
	ID               string
	URL              string
	Title            string
	VisitCount       int
	FirstVisitUnixMs int64
	LastVisitUnixMs  int64
}

// VisitQuery filters QueryVisits.
type VisitQuery struct {
	// Substring matches URL or title, case-insensitively. Empty matches all.
	Substring string

	// Limit caps the result count (default 100).
	Limit int
}
