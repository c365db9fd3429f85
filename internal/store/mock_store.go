// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	scans    map[string]*ScanRecord // keyed by scan ID
	seq      map[string]int         // insertion order, breaks created_at ties like rowid
	next     int
	settings map[string]string
	maxScans int

	// FailWith, when set, is returned by every mutating call.
	FailWith error
}

// NewMockStore creates a new MockStore with the default retention cap.
func NewMockStore() *MockStore {
	return &MockStore{
		scans:    make(map[string]*ScanRecord),
		seq:      make(map[string]int),
		settings: make(map[string]string),
		maxScans: DefaultMaxScans,
	}
}

// SetMaxScans changes the retention cap enforced by AddScan.
func (m *MockStore) SetMaxScans(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxScans = n
}

// AddScan stores a sanitized copy of the scan and prunes to the cap.
func (m *MockStore) AddScan(ctx context.Context, scan *NewScan) (string, error) {
	resultJSON, err := SanitizeResult(scan.Result)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return "", m.FailWith
	}
	if _, ok := m.scans[scan.ID]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateScan, scan.ID)
	}

	m.scans[scan.ID] = &ScanRecord{
		ID:          scan.ID,
		CreatedAt:   scan.CreatedAt,
		Success:     scan.Success,
		CO2eGrams:   scan.CO2eGrams,
		DisplayName: copyString(scan.DisplayName),
		Category:    copyString(scan.Category),
		ErrorCode:   copyString(scan.ErrorCode),
		ResultJSON:  resultJSON,
	}
	m.next++
	m.seq[scan.ID] = m.next

	m.pruneLocked(m.maxScans)
	return scan.ID, nil
}

// GetScanByID retrieves a copy of a scan, or nil if absent.
func (m *MockStore) GetScanByID(ctx context.Context, id string) (*ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.scans[id]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

// ListScans returns scans newest first.
func (m *MockStore) ListScans(ctx context.Context, limit, offset int) ([]*ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = normalizePage(limit, offset)
	return page(m.sortedLocked(func(*ScanRecord) bool { return true }), limit, offset), nil
}

// ListClosetItems returns closet scans newest first.
func (m *MockStore) ListClosetItems(ctx context.Context, limit, offset int) ([]*ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset = normalizePage(limit, offset)
	return page(m.sortedLocked(func(r *ScanRecord) bool { return r.InCloset }), limit, offset), nil
}

// SearchScans approximates SQLite LIKE with an ASCII case-insensitive substring match.
func (m *MockStore) SearchScans(ctx context.Context, query string, closetOnly bool, limit int) ([]*ScanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, _ = normalizePage(limit, 0)
	needle := strings.ToLower(query)
	match := func(r *ScanRecord) bool {
		if r.DisplayName == nil {
			return false
		}
		if closetOnly && !r.InCloset {
			return false
		}
		return strings.Contains(strings.ToLower(*r.DisplayName), needle)
	}
	return page(m.sortedLocked(match), limit, 0), nil
}

// CountScans returns the number of stored scans.
func (m *MockStore) CountScans(ctx context.Context, closetOnly bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.scans {
		if !closetOnly || r.InCloset {
			n++
		}
	}
	return n, nil
}

// ToggleClosetStatus sets the closet flag; unknown ids are ignored.
func (m *MockStore) ToggleClosetStatus(ctx context.Context, id string, inCloset bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	if rec, ok := m.scans[id]; ok {
		rec.InCloset = inCloset
	}
	return nil
}

// DeleteScans removes the given ids.
func (m *MockStore) DeleteScans(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	for _, id := range ids {
		delete(m.scans, id)
		delete(m.seq, id)
	}
	return nil
}

// ClearAllScans removes every scan.
func (m *MockStore) ClearAllScans(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	m.scans = make(map[string]*ScanRecord)
	m.seq = make(map[string]int)
	return nil
}

// PruneOldScans keeps only the keep most recent scans.
func (m *MockStore) PruneOldScans(ctx context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	m.pruneLocked(keep)
	return nil
}

// HasSeenOnboarding reports whether the onboarding flag is "1".
func (m *MockStore) HasSeenOnboarding(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[onboardingKey] == "1"
}

// MarkOnboardingComplete sets the onboarding flag.
func (m *MockStore) MarkOnboardingComplete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWith != nil {
		return m.FailWith
	}
	m.settings[onboardingKey] = "1"
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) pruneLocked(keep int) {
	if keep <= 0 {
		return
	}
	all := m.sortedLocked(func(*ScanRecord) bool { return true })
	for i := keep; i < len(all); i++ {
		delete(m.scans, all[i].ID)
		delete(m.seq, all[i].ID)
	}
}

// sortedLocked returns matching records newest first. Caller must hold mu.
func (m *MockStore) sortedLocked(keep func(*ScanRecord) bool) []*ScanRecord {
	var out []*ScanRecord
	for _, r := range m.scans {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out
}

func page(records []*ScanRecord, limit, offset int) []*ScanRecord {
	result := []*ScanRecord{}
	if offset >= len(records) {
		return result
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	for _, r := range records[offset:end] {
		result = append(result, copyRecord(r))
	}
	return result
}

func copyRecord(r *ScanRecord) *ScanRecord {
	c := *r
	c.DisplayName = copyString(r.DisplayName)
	c.Category = copyString(r.Category)
	c.ErrorCode = copyString(r.ErrorCode)
	c.ResultJSON = copyString(r.ResultJSON)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
