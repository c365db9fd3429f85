// ABOUTME: Shared test helpers for store tests
// ABOUTME: Provides test store setup and scan fixtures

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestStore creates a new SQLite store on a temporary file and closes it on cleanup.
func setupTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func strPtr(s string) *string {
	return &s
}

// newScan builds a successful scan fixture
func newScan(id string, createdAt int64, name string) *NewScan {
	scan := &NewScan{
		ID:        id,
		CreatedAt: createdAt,
		Success:   true,
		CO2eGrams: 12500,
		Category:  strPtr("Jacket"),
		Result: map[string]any{
			"parsed":    map[string]any{"country": "Portugal"},
			"emissions": map[string]any{"total_kgco2e": 12.5},
		},
	}
	if name != "" {
		scan.DisplayName = strPtr(name)
	}
	return scan
}

// seedScans inserts s1..sN with created_at 1..N
func seedScans(t *testing.T, s ScanStore, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		_, err := s.AddScan(ctx, newScan(fmt.Sprintf("s%d", i), int64(i), fmt.Sprintf("Scan %d", i)))
		require.NoError(t, err)
	}
}

func ids(records []*ScanRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
