// Package config handles configuration loading for tagscan.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. The format is picked from the file extension (.toml is TOML,
// anything else is YAML). When no file exists, Default supplies a working
// configuration rooted in the data directory.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TAGSCAN_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tagscan/config.yaml
//  3. ~/.config/tagscan/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${TAGSCAN_DB}"
//
// # Configuration Sections
//
//	database:
//	  path: "~/.local/share/tagscan/scans.db"
//	  driver: "sqlite"        # sqlite (pure Go) or sqlite3 (cgo)
//
//	retention:
//	  max_scans: 100          # <= 0 disables automatic pruning
//
//	capture:
//	  dedupe_window: "10s"    # repeated submissions of one capture are dropped
//	  dedupe_size: 256
//
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text, json
//
// The same layout in TOML:
//
//	[database]
//	path = "/data/scans.db"
//
//	[retention]
//	max_scans = 100
package config
