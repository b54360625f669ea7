package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"districtfinder/cmd"
	"districtfinder/internal/config"
	"districtfinder/internal/nces"
)

var logger *slog.Logger

// setupLogger creates and configures the application logger
func setupLogger(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logPath := filepath.Join(dataDir, "err.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})

	logger = slog.New(handler)
	logger.Info("Application started", "version", "1.0", "data_dir", dataDir)

	return nil
}

// renderMarkdown renders markdown content with glamour for terminal display
func renderMarkdown(content string, width int) (string, error) {
	const glamourGutter = 2
	const borderWidth = 4

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	return renderer.Render(content)
}

// openService builds the configured lookup backend, wrapped in the DuckDB
// cache when a TTL is set. The returned DB must be closed by the caller.
func openService(cfg *config.Config) (nces.Service, *DB, error) {
	db, err := NewDB(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var svc nces.Service
	switch cfg.Backend {
	case config.BackendLocal:
		db.maxDistricts = cfg.MaxDistricts
		if err := db.EnsureDirectory(); err != nil {
			db.Close()
			return nil, nil, err
		}
		svc = db
	default:
		svc = nces.NewClient(nces.ClientConfig{
			DistrictsURL: cfg.DistrictsURL,
			SchoolsURL:   cfg.SchoolsURL,
			MaxDistricts: cfg.MaxDistricts,
			PageSize:     cfg.ArcGISPageSize,
			Concurrency:  cfg.FetchConcurrency,
			Timeout:      cfg.HTTPTimeout,
		})
	}

	if cfg.CacheEnabled() {
		svc = newCachedService(svc, db, cfg.CacheTTL, cfg.Backend)
	}

	if logger != nil {
		logger.Info("Lookup service ready", "backend", cfg.Backend, "cache_ttl", cfg.CacheTTL.String())
	}
	return svc, db, nil
}

// initService sets up logging and the lookup service for CLI commands
func initService(cfg *config.Config) (nces.Service, func(), error) {
	if err := setupLogger(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logger: %v\n", err)
	}

	svc, db, err := openService(cfg)
	if err != nil {
		if errors.Is(err, ErrDirectoryMissing) {
			return nil, nil, fmt.Errorf("%w (run 'districtfinder download' first)", err)
		}
		return nil, nil, err
	}

	cleanup := func() {
		db.Close()
	}
	return svc, cleanup, nil
}

// downloadData fetches the CCD directory file used by the local backend
func downloadData(cfg *config.Config, force bool) error {
	if err := setupLogger(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logger: %v\n", err)
	}

	if !force && !DataFileMissing(cfg.DataDir, DirectoryFile) {
		fmt.Printf("%s already present in %s (use --force to download again)\n", DirectoryFile.Filename, cfg.DataDir)
		return nil
	}

	client := &http.Client{}
	return DownloadAndExtract(context.Background(), client, cfg.DataDir, DirectoryFile, os.Stdout)
}

// launchTUI starts the interactive TUI application
func launchTUI(cfg *config.Config) {
	if err := setupLogger(cfg.DataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
	}

	if cfg.Backend == config.BackendLocal && DataFileMissing(cfg.DataDir, DirectoryFile) {
		if !isInteractive() || !PromptUserForDownload(os.Stdin, os.Stdout, DirectoryFile) {
			if logger != nil {
				logger.Warn("Directory file missing and not downloaded", "data_dir", cfg.DataDir)
			}
			fmt.Println("\n❌ Cannot use the local backend without the school directory file.")
			fmt.Println("Run 'districtfinder download' or use --backend arcgis.")
			os.Exit(1)
		}
		if err := DownloadAndExtract(context.Background(), &http.Client{}, cfg.DataDir, DirectoryFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error downloading files: %v\n", err)
			os.Exit(1)
		}
	}

	svc, db, err := openService(cfg)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to initialize lookup service", "error", err, "backend", cfg.Backend)
		}
		fmt.Fprintf(os.Stderr, "Error initializing lookup service: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	p := tea.NewProgram(
		initialModel(svc, cfg.Debounce),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	cmd.LaunchTUI = launchTUI
	cmd.InitService = initService
	cmd.StartServer = startServer
	cmd.DownloadData = downloadData

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
