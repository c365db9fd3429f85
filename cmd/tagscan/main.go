// ABOUTME: Entry point for the tagscan command-line tool
// ABOUTME: Records tag analyses and browses the local scan history and closet

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tagscan/internal/closet"
	"github.com/2389/tagscan/internal/config"
	"github.com/2389/tagscan/internal/dedupe"
	"github.com/2389/tagscan/internal/store"
)

// version is set at build time.
var version = "dev"

const banner = `
 _                                  
| |_ __ _  __ _ ___  ___ __ _ _ __  
| __/ _' |/ _' / __|/ __/ _' | '_ \ 
| || (_| | (_| \__ \ (_| (_| | | | |
 \__\__,_|\__, |___/\___\__,_|_| |_|
          |___/                     
`

// getConfigPath returns the path to the config file.
// Priority: TAGSCAN_CONFIG env var > XDG_CONFIG_HOME/tagscan/config.yaml > ~/.config/tagscan/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TAGSCAN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "tagscan", "config.yaml")
}

// getDataPath returns the path to the tagscan data directory.
// Priority: XDG_DATA_HOME/tagscan > ~/.local/share/tagscan
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "tagscan")
}

// loadConfig reads the config file, or falls back to defaults when there is none
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && os.Getenv("TAGSCAN_CONFIG") == "" {
		return config.Default(getDataPath()), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

// app bundles what every command needs
type app struct {
	store  *store.SQLiteStore
	svc    *closet.Service
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging)

	st, err := store.NewSQLiteStore(cfg.Database.Path,
		store.WithDriver(cfg.Database.Driver),
		store.WithMaxScans(cfg.MaxScans()),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	svc := closet.New(st, logger,
		closet.WithCaptureDedupe(dedupe.New(cfg.Capture.DedupeWindow, cfg.Capture.DedupeSize)),
	)

	return &app{store: st, svc: svc, logger: logger, in: os.Stdin, out: os.Stdout}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("closing store", "error", err)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: tagscan <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  record <file|->             Record an analysis response (JSON)")
	fmt.Println("  record --error CODE         Record a failed scan")
	fmt.Println("  list [--limit N --offset N] List scan history, newest first")
	fmt.Println("  recent [N]                  Show the N newest scans (default 2)")
	fmt.Println("  closet [query]              List or search closet items")
	fmt.Println("  search <query> [--closet]   Search scans by name")
	fmt.Println("  show <id> [--html]          Show a scan's results")
	fmt.Println("  closet-add <id>             Add a scan to the closet")
	fmt.Println("  closet-remove <id>          Remove a scan from the closet")
	fmt.Println("  delete <id>...              Delete scans")
	fmt.Println("  prune [N]                   Keep only the N newest scans (default: retention.max_scans)")
	fmt.Println("  clear                       Delete all scans")
	fmt.Println("  onboarding [status|complete]")
	fmt.Println("  stats                       Show scan counts")
	fmt.Println("  version                     Print version")
	fmt.Println()
	yellow.Println("Record options:")
	fmt.Println("  --name NAME  --category CATEGORY  --id ID  --capture KEY  --message TEXT")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TAGSCAN_CONFIG              Config file (YAML or .toml)")
	fmt.Println()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version":
		fmt.Println(version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, a, cmd, args)
	a.Close()

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app, cmd string, args []string) error {
	switch cmd {
	case "record", "add":
		return cmdRecord(ctx, a, args)
	case "list", "ls", "history":
		return cmdList(ctx, a, args)
	case "recent":
		return cmdRecent(ctx, a, args)
	case "closet":
		return cmdCloset(ctx, a, args)
	case "search":
		return cmdSearch(ctx, a, args)
	case "show":
		return cmdShow(ctx, a, args)
	case "closet-add":
		return cmdClosetSet(ctx, a, args, true)
	case "closet-remove":
		return cmdClosetSet(ctx, a, args, false)
	case "delete", "rm":
		return cmdDelete(ctx, a, args)
	case "prune":
		return cmdPrune(ctx, a, args)
	case "clear":
		return cmdClear(ctx, a)
	case "onboarding":
		return cmdOnboarding(ctx, a, args)
	case "stats":
		return cmdStats(ctx, a)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
