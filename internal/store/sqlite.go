// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides scan persistence with automatic schema creation and retention pruning

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

const scanColumns = `id, created_at, success, co2e_grams, display_name, category, error_code, result_json, in_closet`

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db       *sql.DB
	logger   *slog.Logger
	maxScans int
}

// Option configures a SQLiteStore
type Option func(*storeOptions)

type storeOptions struct {
	driver   string
	maxScans int
	logger   *slog.Logger
}

// WithDriver selects the database/sql driver name ("sqlite" or "sqlite3")
func WithDriver(name string) Option {
	return func(o *storeOptions) {
		if name != "" {
			o.driver = name
		}
	}
}

// WithMaxScans sets the retention cap enforced after every AddScan.
// A value <= 0 disables automatic pruning.
func WithMaxScans(n int) Option {
	return func(o *storeOptions) {
		o.maxScans = n
	}
}

// WithLogger sets the base logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewSQLiteStore opens (or creates) the scans database at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	o := storeOptions{
		driver:   DriverModernc,
		maxScans: DefaultMaxScans,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := checkDriver(o.driver); err != nil {
		return nil, err
	}
	logger := o.logger.With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(o.driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One handle for the process; statements run strictly one after another.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		logger:   logger,
		maxScans: o.maxScans,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "driver", o.driver, "max_scans", o.maxScans)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scans (
			id           TEXT PRIMARY KEY,
			created_at   INTEGER NOT NULL,
			success      INTEGER NOT NULL,
			co2e_grams   REAL NOT NULL,
			display_name TEXT,
			category     TEXT,
			error_code   TEXT,
			result_json  TEXT,
			in_closet    INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);

		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// Databases created before the closet existed lack in_closet.
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('scans') WHERE name = 'in_closet'`).Scan(&exists)
	if err != nil {
		if _, err := s.db.Exec(`ALTER TABLE scans ADD COLUMN in_closet INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("adding in_closet column to scans: %w", err)
		}
		s.logger.Info("applied migration", "column", "in_closet", "table", "scans")
	}

	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_scans_closet ON scans(in_closet, created_at DESC)`); err != nil {
		return fmt.Errorf("creating closet index: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// MaxScans returns the retention cap enforced by AddScan
func (s *SQLiteStore) MaxScans() int {
	return s.maxScans
}

// AddScan sanitizes the result payload, inserts the record and then prunes
// the table down to the retention cap. The caller's id is returned unchanged.
// A duplicate id returns ErrDuplicateScan.
func (s *SQLiteStore) AddScan(ctx context.Context, scan *NewScan) (string, error) {
	resultJSON, err := SanitizeResult(scan.Result)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, created_at, success, co2e_grams, display_name, category, error_code, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		scan.ID,
		scan.CreatedAt,
		boolToInt(scan.Success),
		scan.CO2eGrams,
		nullString(scan.DisplayName),
		nullString(scan.Category),
		nullString(scan.ErrorCode),
		nullString(resultJSON),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateScan, scan.ID)
		}
		return "", fmt.Errorf("inserting scan: %w", err)
	}

	s.logger.Debug("added scan", "id", scan.ID, "success", scan.Success, "has_result", resultJSON != nil)

	if err := s.PruneOldScans(ctx, s.maxScans); err != nil {
		return "", err
	}
	return scan.ID, nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE/PRIMARY KEY constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// GetScanByID retrieves a scan by ID.
// Returns nil with no error if the scan doesn't exist.
func (s *SQLiteStore) GetScanByID(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying scan: %w", err)
	}
	return rec, nil
}

// ListScans returns scans newest first.
func (s *SQLiteStore) ListScans(ctx context.Context, limit, offset int) ([]*ScanRecord, error) {
	limit, offset = normalizePage(limit, offset)
	return s.queryScans(ctx, `
		SELECT `+scanColumns+`
		FROM scans
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// ListClosetItems returns scans the user added to their closet, newest first.
func (s *SQLiteStore) ListClosetItems(ctx context.Context, limit, offset int) ([]*ScanRecord, error) {
	limit, offset = normalizePage(limit, offset)
	return s.queryScans(ctx, `
		SELECT `+scanColumns+`
		FROM scans
		WHERE in_closet = 1
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
}

// SearchScans matches display_name against %query% with SQLite LIKE, so
// ASCII letters compare case-insensitively and scans without a name never
// match. Callers must not pass an empty query; use ListScans instead.
func (s *SQLiteStore) SearchScans(ctx context.Context, query string, closetOnly bool, limit int) ([]*ScanRecord, error) {
	limit, _ = normalizePage(limit, 0)

	var args []any
	sqlQuery := `SELECT ` + scanColumns + ` FROM scans WHERE display_name LIKE ?`
	args = append(args, "%"+query+"%")

	if closetOnly {
		sqlQuery += ` AND in_closet = 1`
	}

	sqlQuery += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	return s.queryScans(ctx, sqlQuery, args...)
}

// CountScans returns the number of stored scans, optionally only closet items
func (s *SQLiteStore) CountScans(ctx context.Context, closetOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM scans`
	if closetOnly {
		query += ` WHERE in_closet = 1`
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting scans: %w", err)
	}
	return n, nil
}

// ToggleClosetStatus sets in_closet for a scan. Unknown ids are ignored.
func (s *SQLiteStore) ToggleClosetStatus(ctx context.Context, id string, inCloset bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE scans SET in_closet = ? WHERE id = ?`, boolToInt(inCloset), id)
	if err != nil {
		return fmt.Errorf("updating closet status: %w", err)
	}

	rows, _ := result.RowsAffected()
	s.logger.Debug("toggled closet status", "id", id, "in_closet", inCloset, "matched", rows)
	return nil
}

// DeleteScans removes every scan whose id is in ids. Missing ids are ignored.
func (s *SQLiteStore) DeleteScans(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("deleting scans: %w", err)
	}

	rows, _ := result.RowsAffected()
	s.logger.Debug("deleted scans", "requested", len(ids), "deleted", rows)
	return nil
}

// ClearAllScans removes every scan. Settings are untouched.
func (s *SQLiteStore) ClearAllScans(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scans`); err != nil {
		return fmt.Errorf("clearing scans: %w", err)
	}
	s.logger.Info("cleared all scans")
	return nil
}

// PruneOldScans deletes everything except the keep most recent scans.
// It is a no-op when keep <= 0.
func (s *SQLiteStore) PruneOldScans(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM scans
		WHERE id NOT IN (
			SELECT id FROM scans ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning scans: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		s.logger.Debug("pruned scans", "deleted", rows, "keep", keep)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*ScanRecord, error) {
	var rec ScanRecord
	var success, inCloset int
	var displayName, category, errorCode, resultJSON sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.CreatedAt,
		&success,
		&rec.CO2eGrams,
		&displayName,
		&category,
		&errorCode,
		&resultJSON,
		&inCloset,
	)
	if err != nil {
		return nil, err
	}

	rec.Success = success != 0
	rec.InCloset = inCloset != 0
	rec.DisplayName = stringPtr(displayName)
	rec.Category = stringPtr(category)
	rec.ErrorCode = stringPtr(errorCode)
	rec.ResultJSON = stringPtr(resultJSON)
	return &rec, nil
}

func (s *SQLiteStore) queryScans(ctx context.Context, query string, args ...any) ([]*ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []*ScanRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scan row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scans: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
