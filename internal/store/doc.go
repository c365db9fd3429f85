// Package store provides on-device persistence for tag scans using SQLite.
//
// # Architecture
//
// The store package exposes two narrow interfaces:
//
//   - ScanStore: scan attempts, the closet flag, search and retention
//   - SettingsStore: the onboarding flag in a key-value table
//
// SQLiteStore implements both over a single *sql.DB. It is constructed once
// and passed to its callers; there is no package-level handle.
//
// # Data Model
//
//   - ScanRecord: one row per scan attempt, successful or failed
//   - NewScan: the insert request, carrying an untrusted Result payload
//
// # Sanitization
//
// AddScan never writes the raw analysis payload. SanitizeResult keeps only the
// top-level keys parsed, emissions and error, rejects a fixed deny-list
// (image, dataUrl, base64, raw_ocr, prompt, response, logs) and stores NULL
// when nothing survives. Nested values are not inspected.
//
// # Retention
//
// After every insert the table is pruned to the configured cap (100 by
// default, see WithMaxScans), oldest created_at first. The closet flag does
// not protect a scan from pruning.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//
// The connection pool is pinned to one connection. Two drivers are
// registered: "sqlite" (modernc.org/sqlite, default) and "sqlite3"
// (github.com/mattn/go-sqlite3, requires cgo).
//
// # Error Handling
//
//   - GetScanByID returns nil, nil for unknown ids
//   - ErrDuplicateScan: AddScan with an id that already exists
//   - HasSeenOnboarding never fails; read errors mean "not seen"
//
// Every other storage failure is returned wrapped; nothing is retried.
//
// # Testing
//
// Use NewMockStore() for unit tests of callers, and NewSQLiteStore on a
// t.TempDir() path for integration tests with real SQLite.
package store
