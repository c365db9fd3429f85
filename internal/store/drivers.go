// ABOUTME: database/sql driver registration for the scans database
// ABOUTME: modernc.org/sqlite is the pure-Go default, mattn/go-sqlite3 the cgo alternative

package store

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names accepted by WithDriver
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, no cgo
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3, needs cgo
)

func checkDriver(name string) error {
	switch name {
	case DriverModernc, DriverCGO:
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q (use %q or %q)", name, DriverModernc, DriverCGO)
	}
}
