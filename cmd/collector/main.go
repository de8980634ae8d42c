package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/internal/ingest"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// statsInterval is how often the collector logs a traffic summary.
const statsInterval = 30 * time.Second

// Collector continuously polls the configured ADS-B sources into a timeline
// store, optionally recording every sample to a history archive and the
// database for later replay.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("collector", cfg.Logging)
	if err := run(cfg, logger); err != nil {
		logger.Error("Collector failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	regions := ingest.Regions(cfg)
	logger.Info("Collector starting",
		slog.String("observer", cfg.Observer.Name),
		slog.Float64("latitude", cfg.Observer.Latitude),
		slog.Float64("longitude", cfg.Observer.Longitude),
		slog.Int("regions", len(regions)))
	for _, r := range regions {
		logger.Info("Collection region",
			slog.String("name", r.Name),
			slog.Float64("latitude", r.Latitude),
			slog.Float64("longitude", r.Longitude),
			slog.Float64("radius_nm", r.RadiusNM))
		if r.RadiusNM > 250 {
			logger.Warn("Large radius (>250 nm) is clamped by the API", slog.String("region", r.Name))
		}
	}

	var opts []ingest.Option

	if cfg.Database.Enabled {
		database, err := db.ReconnectWithRetry(ctx, cfg.Database, 5, 2*time.Second, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		logger.Info("Database schema initialized", slog.Duration("retention", database.Retention()))
		opts = append(opts, ingest.WithDatabase(database))
	}

	if cfg.History.Enabled {
		archive, path, err := ingest.OpenArchive(cfg.History.Dir, time.Now())
		if err != nil {
			return err
		}
		logger.Info("Recording history", slog.String("path", path))
		opts = append(opts, ingest.WithArchive(archive))
	}

	p, err := ingest.New(cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error("Shutdown error", slog.Any("error", err))
		}
	}()

	for _, f := range p.Feeds {
		logger.Info("Using ADS-B source",
			slog.String("name", f.Name),
			slog.Duration("interval", f.Interval),
			slog.Duration("display_delay", f.DisplayDelay))
	}

	go reportStats(ctx, p, logger)

	logger.Info("Collector service started; press Ctrl+C to stop")
	p.Run(ctx)
	logger.Info("Collector service stopped")
	return nil
}

// reportStats periodically advances the store and logs what would be drawn.
func reportStats(ctx context.Context, p *ingest.Pipeline, logger *logging.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			summary := summarize(p.Store.Advance(now))
			status := p.Store.Status()
			logger.Info("Stats",
				slog.Int("aircraft", summary.Aircraft),
				slog.Int("interpolating", summary.Interpolating),
				slog.Int("extrapolating", summary.Extrapolating),
				slog.Int("on_ground", summary.OnGround),
				slog.Bool("ready", status.ReadyToInterpolate))

			if stats, ok, err := p.Stats(ctx); err != nil {
				logger.Warn("Failed to read database stats", slog.Any("error", err))
			} else if ok {
				logger.Info("Recorded",
					slog.Int("aircraft", stats.Aircraft),
					slog.Int64("observations", stats.Observations),
					slog.Time("oldest", stats.Oldest))
			}
		}
	}
}

// frameSummary counts aircraft in a frame by display mode.
type frameSummary struct {
	Aircraft      int
	Interpolating int
	Extrapolating int
	OnGround      int
}

func summarize(frame timeline.Frame) frameSummary {
	var s frameSummary
	for _, st := range frame {
		s.Aircraft++
		if st.Extrapolating {
			s.Extrapolating++
		} else if st.ObservationCount > 1 {
			s.Interpolating++
		}
		if st.OnGround != nil && *st.OnGround {
			s.OnGround++
		}
	}
	return s
}
