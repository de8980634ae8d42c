package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/history"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	archivePath := flag.String("archive", "", "History archive to replay (default: read from the database)")
	fromFlag := flag.String("from", "", "Start of the database range (RFC3339, default: one hour before -to)")
	toFlag := flag.String("to", "", "End of the database range (RFC3339, default: now)")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("replay version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	cfg.Logging.Stderr = false
	logger := logging.NewWriter(io.Discard, cfg.Logging.Level)
	if cfg.Logging.Dir != "" {
		logger = logging.New("replay", cfg.Logging)
	}

	from, to, err := parseRange(*fromFlag, *toFlag, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	updates, source, err := loadUpdates(ctx, cfg, *archivePath, from, to)
	cancel()
	if err != nil {
		logger.Error("Failed to load recording", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Failed to load recording: %v\n", err)
		os.Exit(1)
	}
	if len(updates) == 0 {
		fmt.Fprintf(os.Stderr, "No observations in %s\n", source)
		os.Exit(1)
	}
	logger.Info("Recording loaded", slog.String("source", source), slog.Int("samples", len(updates)))

	store := timeline.NewStore(cfg.Timeline.EngineConfig())
	lookbehind, lookahead := cfg.History.ReplayWindow()

	app := NewApp(&AppConfig{
		Player: history.NewPlayer(store, updates, lookbehind, lookahead),
		Observer: coordinates.Geographic{
			Latitude:  cfg.Observer.Latitude,
			Longitude: cfg.Observer.Longitude,
			Altitude:  cfg.Observer.Elevation,
		},
		ObserverName: cfg.Observer.Name,
		Source:       source,
		TickInterval: cfg.Timeline.TickInterval(),
		Logger:       logger,
	})

	if err := app.Run(); err != nil {
		logger.Error("Application error", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// parseRange parses the database range flags. Missing ends default to now
// and one hour before the end.
func parseRange(fromFlag, toFlag string, now time.Time) (from, to time.Time, err error) {
	to = now
	if toFlag != "" {
		if to, err = time.Parse(time.RFC3339, toFlag); err != nil {
			return from, to, fmt.Errorf("invalid -to: %w", err)
		}
	}
	from = to.Add(-time.Hour)
	if fromFlag != "" {
		if from, err = time.Parse(time.RFC3339, fromFlag); err != nil {
			return from, to, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if !from.Before(to) {
		return from, to, errors.New("-from must be before -to")
	}
	return from, to, nil
}

// loadUpdates reads the recording from an archive file when one is given,
// otherwise from the database.
func loadUpdates(ctx context.Context, cfg *config.Config, archive string, from, to time.Time) ([]timeline.Update, string, error) {
	if archive != "" {
		updates, err := history.ReadFile(archive)
		return updates, archive, err
	}

	if !cfg.Database.Enabled {
		return nil, "", errors.New("no -archive given and the database is disabled")
	}
	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, "", err
	}
	defer database.Close()

	repo := db.NewObservationRepository(database)
	updates, err := repo.LoadHistory(ctx, from, to)
	source := fmt.Sprintf("database %s to %s", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	return updates, source, err
}

func printHelp() {
	fmt.Println("replay - Scrub through recorded ADS-B traffic")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  replay [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("KEYBOARD SHORTCUTS:")
	fmt.Println("  SPACE          Pause/resume")
	fmt.Println("  ←/→            Seek 10 seconds")
	fmt.Println("  PgUp/PgDn      Seek 1 minute")
	fmt.Println("  Home/End       Jump to start/end")
	fmt.Println("  +/-            Playback speed")
	fmt.Println("  ↑/↓ or j/k     Select aircraft")
	fmt.Println("  ENTER          Track selected aircraft")
	fmt.Println("  s              Stop tracking")
	fmt.Println("  q or Esc       Quit")
}
