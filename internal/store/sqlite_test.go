// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers scan CRUD, ordering, search, closet toggling, deletion and retention

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if store.MaxScans() != DefaultMaxScans {
		t.Errorf("MaxScans = %d, want %d", store.MaxScans(), DefaultMaxScans)
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_UnsupportedDriver(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := NewSQLiteStore(dbPath, WithDriver("postgres")); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if _, err := store.AddScan(ctx, newScan("s1", 1, "Wool Coat")); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetScanByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetScanByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("scan missing after reopen")
	}
}

func TestMigration_AddsInClosetColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open(DriverModernc, dbPath)
	if err != nil {
		t.Fatalf("opening legacy db: %v", err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE scans (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			success INTEGER NOT NULL,
			co2e_grams REAL NOT NULL,
			display_name TEXT,
			category TEXT,
			error_code TEXT,
			result_json TEXT
		);
		INSERT INTO scans (id, created_at, success, co2e_grams, display_name)
		VALUES ('old-1', 10, 1, 4200, 'Old Shirt');
	`)
	if err != nil {
		t.Fatalf("creating legacy schema: %v", err)
	}
	legacy.Close()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore on legacy db failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	got, err := store.GetScanByID(ctx, "old-1")
	if err != nil || got == nil {
		t.Fatalf("GetScanByID = %v, %v", got, err)
	}
	if got.InCloset {
		t.Error("migrated row should default to in_closet = false")
	}

	if err := store.ToggleClosetStatus(ctx, "old-1", true); err != nil {
		t.Fatalf("ToggleClosetStatus failed: %v", err)
	}
	got, _ = store.GetScanByID(ctx, "old-1")
	if !got.InCloset {
		t.Error("in_closet not set after migration")
	}
}

func TestAddAndGetScan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	scan := newScan("scan-123", 1700000000000, "Blue Jacket")
	id, err := store.AddScan(ctx, scan)
	if err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}
	if id != "scan-123" {
		t.Errorf("AddScan returned %q, want %q", id, "scan-123")
	}

	got, err := store.GetScanByID(ctx, "scan-123")
	if err != nil {
		t.Fatalf("GetScanByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetScanByID returned nil")
	}

	if got.CreatedAt != 1700000000000 {
		t.Errorf("CreatedAt = %d, want %d", got.CreatedAt, int64(1700000000000))
	}
	if !got.Success {
		t.Error("Success should be true")
	}
	if got.CO2eGrams != 12500 {
		t.Errorf("CO2eGrams = %v, want 12500", got.CO2eGrams)
	}
	if got.DisplayName == nil || *got.DisplayName != "Blue Jacket" {
		t.Errorf("DisplayName = %v, want Blue Jacket", got.DisplayName)
	}
	if got.Category == nil || *got.Category != "Jacket" {
		t.Errorf("Category = %v, want Jacket", got.Category)
	}
	if got.ErrorCode != nil {
		t.Errorf("ErrorCode = %q, want nil", *got.ErrorCode)
	}
	if got.InCloset {
		t.Error("new scans should not be in the closet")
	}
	if got.ResultJSON == nil {
		t.Fatal("ResultJSON should be set")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(*got.ResultJSON), &result); err != nil {
		t.Fatalf("ResultJSON is not valid JSON: %v", err)
	}
	if _, ok := result["parsed"]; !ok {
		t.Error("ResultJSON missing parsed")
	}
	if _, ok := result["emissions"]; !ok {
		t.Error("ResultJSON missing emissions")
	}
}

func TestAddScan_FailedScan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	scan := &NewScan{
		ID:        "failed-1",
		CreatedAt: 5,
		Success:   false,
		ErrorCode: strPtr("UPSTREAM_ERROR"),
		Result:    map[string]any{"error": map[string]any{"code": "UPSTREAM_ERROR"}},
	}
	if _, err := store.AddScan(ctx, scan); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}

	got, err := store.GetScanByID(ctx, "failed-1")
	if err != nil || got == nil {
		t.Fatalf("GetScanByID = %v, %v", got, err)
	}
	if got.Success {
		t.Error("Success should be false")
	}
	if got.ErrorCode == nil || *got.ErrorCode != "UPSTREAM_ERROR" {
		t.Errorf("ErrorCode = %v, want UPSTREAM_ERROR", got.ErrorCode)
	}
	if got.DisplayName != nil || got.Category != nil {
		t.Error("nullable columns should stay NULL")
	}
	if got.ResultJSON == nil || *got.ResultJSON != `{"error":{"code":"UPSTREAM_ERROR"}}` {
		t.Errorf("ResultJSON = %v", got.ResultJSON)
	}
}

func TestGetScanByID_NotFound(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetScanByID(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil scan, got %+v", got)
	}
}

func TestAddScan_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.AddScan(ctx, newScan("dup", 1, "First")); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}

	_, err := store.AddScan(ctx, newScan("dup", 2, "Second"))
	if !errors.Is(err, ErrDuplicateScan) {
		t.Fatalf("expected ErrDuplicateScan, got %v", err)
	}

	got, _ := store.GetScanByID(ctx, "dup")
	if got == nil || *got.DisplayName != "First" {
		t.Error("original scan should be untouched")
	}
}

func TestAddScan_UnencodableResult(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	scan := newScan("bad", 1, "Bad Payload")
	scan.Result = map[string]any{"parsed": make(chan int)}

	if _, err := store.AddScan(ctx, scan); err == nil {
		t.Fatal("expected encoding error")
	}

	got, err := store.GetScanByID(ctx, "bad")
	if err != nil {
		t.Fatalf("GetScanByID failed: %v", err)
	}
	if got != nil {
		t.Error("nothing should be written when the result cannot be encoded")
	}
}

func TestAddScan_StripsSensitiveKeys(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	scan := newScan("s", 1, "Tee")
	scan.Result = map[string]any{
		"parsed": map[string]any{"country": "India"},
		"error":  nil,
		"image":  "file:///tmp/capture.jpg",
		"base64": "iVBORw0KGgo=",
		"prompt": "read this tag",
	}
	if _, err := store.AddScan(ctx, scan); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}

	got, _ := store.GetScanByID(ctx, "s")
	var result map[string]any
	if err := json.Unmarshal([]byte(*got.ResultJSON), &result); err != nil {
		t.Fatalf("invalid ResultJSON: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("expected 2 keys, got %v", result)
	}
	for _, k := range []string{"image", "base64", "prompt", "emissions"} {
		if _, ok := result[k]; ok {
			t.Errorf("key %q should not be stored", k)
		}
	}
}

func TestAddScan_NothingAllowedStoresNull(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	scan := newScan("s", 1, "Tee")
	scan.Result = map[string]any{
		"image": "data:image/jpeg;base64,AAAA",
		"logs":  []any{"step 1", "step 2"},
	}
	if _, err := store.AddScan(ctx, scan); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}

	got, _ := store.GetScanByID(ctx, "s")
	if got.ResultJSON != nil {
		t.Errorf("ResultJSON = %q, want NULL", *got.ResultJSON)
	}
}

func TestRetention_101Scans(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	seedScans(t, store, 101)

	scans, err := store.ListScans(ctx, 200, 0)
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(scans) != 100 {
		t.Fatalf("expected 100 scans, got %d", len(scans))
	}

	got := make(map[string]bool, len(scans))
	for _, s := range scans {
		got[s.ID] = true
	}
	if got["s1"] {
		t.Error("s1 should have been pruned")
	}
	for i := 2; i <= 101; i++ {
		if !got[fmt.Sprintf("s%d", i)] {
			t.Errorf("s%d missing", i)
		}
	}
}

func TestRetention_KeepsMostRecent(t *testing.T) {
	for _, n := range []int{1, 99, 100, 150} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			store := setupTestStore(t)
			seedScans(t, store, n)

			scans, err := store.ListScans(context.Background(), n, 0)
			if err != nil {
				t.Fatalf("ListScans failed: %v", err)
			}

			want := min(n, 100)
			if len(scans) != want {
				t.Fatalf("got %d scans, want %d", len(scans), want)
			}
			// Newest first, so the first record is sN and the last is s(N-want+1)
			if scans[0].ID != fmt.Sprintf("s%d", n) {
				t.Errorf("first = %s, want s%d", scans[0].ID, n)
			}
			if last := scans[len(scans)-1].ID; last != fmt.Sprintf("s%d", n-want+1) {
				t.Errorf("last = %s, want s%d", last, n-want+1)
			}
		})
	}
}

func TestRetention_CustomCap(t *testing.T) {
	store := setupTestStore(t, WithMaxScans(5))
	seedScans(t, store, 8)

	n, err := store.CountScans(context.Background(), false)
	if err != nil {
		t.Fatalf("CountScans failed: %v", err)
	}
	if n != 5 {
		t.Errorf("CountScans = %d, want 5", n)
	}
}

func TestRetention_Disabled(t *testing.T) {
	store := setupTestStore(t, WithMaxScans(0))
	seedScans(t, store, 120)

	n, _ := store.CountScans(context.Background(), false)
	if n != 120 {
		t.Errorf("CountScans = %d, want 120", n)
	}
}

func TestListScans_Ordering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i, ts := range []int64{30, 10, 50, 20, 40, 40} {
		if _, err := store.AddScan(ctx, newScan(fmt.Sprintf("o%d", i), ts, "x")); err != nil {
			t.Fatalf("AddScan failed: %v", err)
		}
	}

	scans, err := store.ListScans(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(scans) != 6 {
		t.Fatalf("expected 6 scans, got %d", len(scans))
	}
	for i := 1; i < len(scans); i++ {
		if scans[i].CreatedAt > scans[i-1].CreatedAt {
			t.Errorf("scan %d (%d) newer than scan %d (%d)", i, scans[i].CreatedAt, i-1, scans[i-1].CreatedAt)
		}
	}
	if scans[0].ID != "o2" {
		t.Errorf("first = %s, want o2", scans[0].ID)
	}
	// Equal timestamps: the later insert comes first
	if scans[1].ID != "o5" || scans[2].ID != "o4" {
		t.Errorf("tie order = %s, %s; want o5, o4", scans[1].ID, scans[2].ID)
	}
}

func TestListScans_Paging(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedScans(t, store, 60)

	first, err := store.ListScans(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListScans failed: %v", err)
	}
	if len(first) != DefaultPageSize {
		t.Errorf("default page = %d, want %d", len(first), DefaultPageSize)
	}

	recent, _ := store.ListScans(ctx, 2, 0)
	if got := ids(recent); len(got) != 2 || got[0] != "s60" || got[1] != "s59" {
		t.Errorf("recent = %v, want [s60 s59]", got)
	}

	page, _ := store.ListScans(ctx, 5, 10)
	if got := ids(page); len(got) != 5 || got[0] != "s50" || got[4] != "s46" {
		t.Errorf("page = %v, want s50..s46", got)
	}

	tail, _ := store.ListScans(ctx, 50, 55)
	if len(tail) != 5 {
		t.Errorf("tail length = %d, want 5", len(tail))
	}

	past, _ := store.ListScans(ctx, 10, 500)
	if past == nil || len(past) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", past)
	}
}

func TestListClosetItems(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedScans(t, store, 6)

	for _, id := range []string{"s2", "s5", "s3"} {
		if err := store.ToggleClosetStatus(ctx, id, true); err != nil {
			t.Fatalf("ToggleClosetStatus failed: %v", err)
		}
	}

	items, err := store.ListClosetItems(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListClosetItems failed: %v", err)
	}
	got := ids(items)
	want := []string{"s5", "s3", "s2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("closet = %v, want %v", got, want)
	}

	paged, _ := store.ListClosetItems(ctx, 1, 1)
	if got := ids(paged); len(got) != 1 || got[0] != "s3" {
		t.Errorf("paged closet = %v, want [s3]", got)
	}

	n, _ := store.CountScans(ctx, true)
	if n != 3 {
		t.Errorf("CountScans(closet) = %d, want 3", n)
	}
}

func TestSearchScans(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	jacket := newScan("jacket", 2, "Blue Jacket")
	hat := newScan("hat", 1, "Blue Hat")
	unnamed := newScan("unnamed", 3, "")
	scarf := newScan("scarf", 4, "Red Scarf")
	for _, s := range []*NewScan{jacket, hat, unnamed, scarf} {
		if _, err := store.AddScan(ctx, s); err != nil {
			t.Fatalf("AddScan failed: %v", err)
		}
	}
	if err := store.ToggleClosetStatus(ctx, "jacket", true); err != nil {
		t.Fatalf("ToggleClosetStatus failed: %v", err)
	}

	tests := []struct {
		name       string
		query      string
		closetOnly bool
		limit      int
		want       []string
	}{
		{"closet only", "Blue", true, 0, []string{"jacket"}},
		{"all scans", "Blue", false, 0, []string{"jacket", "hat"}},
		{"substring", "ac", false, 0, []string{"jacket"}},
		{"ascii case insensitive", "blue", false, 0, []string{"jacket", "hat"}},
		{"limit", "Blue", false, 1, []string{"jacket"}},
		{"no match", "Green", false, 0, []string{}},
		{"closet no match", "Scarf", true, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SearchScans(ctx, tt.query, tt.closetOnly, tt.limit)
			if err != nil {
				t.Fatalf("SearchScans failed: %v", err)
			}
			if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
				t.Errorf("SearchScans(%q, %v) = %v, want %v", tt.query, tt.closetOnly, ids(got), tt.want)
			}
		})
	}
}

func TestSearchScans_NullNameNeverMatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.AddScan(ctx, newScan("unnamed", 1, "")); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}

	// "%%" matches every non-NULL string, so only NULL names are excluded here
	got, err := store.SearchScans(ctx, "", false, 10)
	if err != nil {
		t.Fatalf("SearchScans failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches for NULL display_name, got %v", ids(got))
	}
}

func TestToggleClosetStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.AddScan(ctx, newScan("s1", 1, "Coat")); err != nil {
		t.Fatalf("AddScan failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.ToggleClosetStatus(ctx, "s1", true); err != nil {
			t.Fatalf("ToggleClosetStatus failed: %v", err)
		}
	}
	got, _ := store.GetScanByID(ctx, "s1")
	if !got.InCloset {
		t.Error("expected in_closet after two adds")
	}

	if err := store.ToggleClosetStatus(ctx, "s1", false); err != nil {
		t.Fatalf("ToggleClosetStatus failed: %v", err)
	}
	got, _ = store.GetScanByID(ctx, "s1")
	if got.InCloset {
		t.Error("expected in_closet cleared")
	}
}

func TestToggleClosetStatus_UnknownID(t *testing.T) {
	store := setupTestStore(t)

	if err := store.ToggleClosetStatus(context.Background(), "missing", true); err != nil {
		t.Errorf("expected silent no-op, got %v", err)
	}
}

func TestDeleteScans(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedScans(t, store, 4)

	if err := store.DeleteScans(ctx, []string{"s1", "s3"}); err != nil {
		t.Fatalf("DeleteScans failed: %v", err)
	}

	remaining, _ := store.ListScans(ctx, 10, 0)
	if got := fmt.Sprint(ids(remaining)); got != "[s4 s2]" {
		t.Errorf("remaining = %s, want [s4 s2]", got)
	}

	if err := store.DeleteScans(ctx, []string{"s1", "nope"}); err != nil {
		t.Errorf("deleting absent ids should not fail: %v", err)
	}
	if err := store.DeleteScans(ctx, nil); err != nil {
		t.Errorf("empty delete should not fail: %v", err)
	}

	remaining, _ = store.ListScans(ctx, 10, 0)
	if len(remaining) != 2 {
		t.Errorf("expected 2 remaining, got %d", len(remaining))
	}
}

func TestPruneOldScans(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedScans(t, store, 10)

	// The closet flag does not protect a scan from pruning
	if err := store.ToggleClosetStatus(ctx, "s1", true); err != nil {
		t.Fatalf("ToggleClosetStatus failed: %v", err)
	}

	if err := store.PruneOldScans(ctx, 0); err != nil {
		t.Fatalf("PruneOldScans(0) failed: %v", err)
	}
	if err := store.PruneOldScans(ctx, -3); err != nil {
		t.Fatalf("PruneOldScans(-3) failed: %v", err)
	}
	n, _ := store.CountScans(ctx, false)
	if n != 10 {
		t.Fatalf("non-positive prune removed scans: %d left", n)
	}

	if err := store.PruneOldScans(ctx, 3); err != nil {
		t.Fatalf("PruneOldScans failed: %v", err)
	}
	remaining, _ := store.ListScans(ctx, 10, 0)
	if got := fmt.Sprint(ids(remaining)); got != "[s10 s9 s8]" {
		t.Errorf("remaining = %s, want [s10 s9 s8]", got)
	}
}

func TestClearAllScans_KeepsSettings(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedScans(t, store, 3)

	if err := store.MarkOnboardingComplete(ctx); err != nil {
		t.Fatalf("MarkOnboardingComplete failed: %v", err)
	}
	if err := store.ClearAllScans(ctx); err != nil {
		t.Fatalf("ClearAllScans failed: %v", err)
	}

	n, _ := store.CountScans(ctx, false)
	if n != 0 {
		t.Errorf("CountScans = %d, want 0", n)
	}
	if !store.HasSeenOnboarding(ctx) {
		t.Error("clearing scans should not reset onboarding")
	}
}

func TestStorageFailurePropagates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Close()

	if _, err := store.ListScans(ctx, 10, 0); err == nil {
		t.Error("ListScans on closed store should fail")
	}
	if _, err := store.AddScan(ctx, newScan("s1", 1, "x")); err == nil {
		t.Error("AddScan on closed store should fail")
	}
	if _, err := store.GetScanByID(ctx, "s1"); err == nil {
		t.Error("GetScanByID on closed store should fail")
	}
	if err := store.DeleteScans(ctx, []string{"s1"}); err == nil {
		t.Error("DeleteScans on closed store should fail")
	}
	if store.HasSeenOnboarding(ctx) {
		t.Error("HasSeenOnboarding should report false on failure")
	}
}
