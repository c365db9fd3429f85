// ABOUTME: Store interfaces and data types for tagscan persistence
// ABOUTME: Defines ScanRecord, NewScan and the ScanStore/SettingsStore interfaces

package store

import (
	"context"
	"errors"
)

// ErrDuplicateScan is returned when a scan id is already present in the store
var ErrDuplicateScan = errors.New("scan already exists")

// DefaultMaxScans is the retention cap applied after every insert unless overridden
const DefaultMaxScans = 100

// DefaultPageSize is used when a list or search call passes a non-positive limit
const DefaultPageSize = 50

// ScanRecord is one persisted scan attempt, successful or not
type ScanRecord struct {
	ID          string
	CreatedAt   int64 // epoch milliseconds
	Success     bool
	CO2eGrams   float64
	DisplayName *string
	Category    *string
	ErrorCode   *string
	ResultJSON  *string // sanitized {parsed, emissions, error} object, or nil
	InCloset    bool
}

// NewScan is the input to AddScan. Result is untrusted and is filtered by
// SanitizeResult before anything is written.
type NewScan struct {
	ID          string
	CreatedAt   int64
	Success     bool
	CO2eGrams   float64
	DisplayName *string
	Category    *string
	ErrorCode   *string
	Result      any
}

// ScanStore persists scan attempts and the closet flag on each of them
type ScanStore interface {
	AddScan(ctx context.Context, scan *NewScan) (string, error)
	GetScanByID(ctx context.Context, id string) (*ScanRecord, error)
	ListScans(ctx context.Context, limit, offset int) ([]*ScanRecord, error)
	ListClosetItems(ctx context.Context, limit, offset int) ([]*ScanRecord, error)
	SearchScans(ctx context.Context, query string, closetOnly bool, limit int) ([]*ScanRecord, error)
	CountScans(ctx context.Context, closetOnly bool) (int, error)

	ToggleClosetStatus(ctx context.Context, id string, inCloset bool) error
	DeleteScans(ctx context.Context, ids []string) error
	ClearAllScans(ctx context.Context) error
	PruneOldScans(ctx context.Context, keep int) error
}

// SettingsStore is the key-value table shared with the scans database
type SettingsStore interface {
	HasSeenOnboarding(ctx context.Context) bool
	MarkOnboardingComplete(ctx context.Context) error
}

// Store combines everything the application needs from persistence
type Store interface {
	ScanStore
	SettingsStore

	// Close releases any resources held by the store
	Close() error
}

// normalizePage applies the default page size and clamps negative offsets
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
