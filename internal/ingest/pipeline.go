// Package ingest wires configured ADS-B sources into a timeline store, with
// optional recording of every sample to a history archive and PostgreSQL.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/unklstewy/skytrail/internal/db"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/adsb"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/history"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

const (
	// cleanupInterval is how often recorded observations past retention are removed.
	cleanupInterval = 5 * time.Minute

	reconnectAttempts = 3
	reconnectDelay    = time.Second
)

// Pipeline owns the store and everything that feeds it.
type Pipeline struct {
	Store *timeline.Store
	Feeds []*adsb.Feed

	cfg     *config.Config
	logger  *logging.Logger
	archive *history.Writer
	clients []adsb.DataSource

	// dbMu guards the connection, which is replaced when it drops.
	dbMu           sync.Mutex
	database       *db.DB
	repo           *db.ObservationRepository
	ownsDB         bool
	recording      bool
	reconnectTries int
	reconnectDelay time.Duration
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithDatabase records samples through an already connected database.
func WithDatabase(database *db.DB) Option {
	return func(p *Pipeline) {
		p.database = database
		p.repo = db.NewObservationRepository(database)
		p.recording = true
	}
}

// WithArchive records samples to an already open history writer.
func WithArchive(w *history.Writer) Option {
	return func(p *Pipeline) { p.archive = w }
}

// New builds the store and one feed per enabled source. Recording sinks are
// attached when supplied through options.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:            cfg,
		logger:         logger,
		reconnectTries: reconnectAttempts,
		reconnectDelay: reconnectDelay,
	}
	for _, opt := range opts {
		opt(p)
	}

	var storeOpts []timeline.Option
	if len(cfg.Timeline.TraceIDs) > 0 {
		storeOpts = append(storeOpts, timeline.WithTracer(
			timeline.NewLogTracer(logger.Slog(), normalizeIDs(cfg.Timeline.TraceIDs)...)))
	}
	p.Store = timeline.NewStore(cfg.Timeline.EngineConfig(), storeOpts...)

	regions := Regions(cfg)
	if len(regions) == 0 {
		return nil, errors.New("no collection regions enabled")
	}

	sink := p.sink()
	for _, src := range cfg.ADSB.Sources {
		if !src.Enabled {
			continue
		}
		client, err := NewDataSource(src)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.clients = append(p.clients, client)

		retry := adsb.DefaultRetryConfig()
		retry.Logger = logger
		p.Feeds = append(p.Feeds, &adsb.Feed{
			Name:         src.Name,
			Source:       client,
			Regions:      regions,
			Interval:     src.UpdateInterval(),
			DisplayDelay: src.DisplayDelay(),
			Retry:        retry,
			Sink:         sink,
			Logger:       logger,
		})
	}
	if len(p.Feeds) == 0 {
		p.Close()
		return nil, errors.New("no ADS-B sources enabled")
	}
	return p, nil
}

// NewDataSource creates the client for a configured source.
func NewDataSource(src config.ADSBSource) (adsb.DataSource, error) {
	switch strings.ToLower(src.Type) {
	case "airplanes.live", "":
		return adsb.NewAirplanesLiveClient(src.BaseURL, time.Duration(src.RateLimitSeconds*float64(time.Second))), nil
	default:
		return nil, fmt.Errorf("unsupported ADS-B source type %q", src.Type)
	}
}

// Regions converts the enabled collection regions to feed regions.
func Regions(cfg *config.Config) []adsb.Region {
	var regions []adsb.Region
	for _, r := range cfg.ADSB.GetCollectionRegions(cfg.Observer) {
		if !r.Enabled {
			continue
		}
		regions = append(regions, adsb.Region{
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			RadiusNM:  r.RadiusNM,
		})
	}
	return regions
}

// sink fans updates out to the store and any recorders.
func (p *Pipeline) sink() adsb.Sink {
	var rest []adsb.Sink
	if p.archive != nil {
		rest = append(rest, adsb.SinkFunc(p.record))
	}
	if p.recording {
		rest = append(rest, adsb.SinkFunc(p.persist))
	}
	return adsb.Tee(p.Store, rest...)
}

func (p *Pipeline) record(updates []timeline.Update) int {
	if err := p.archive.Write(updates...); err != nil {
		p.logger.Error("Failed to record history", slog.Any("error", err))
		return 0
	}
	return len(updates)
}

// connection returns a live database, reconnecting if the current one has
// dropped. A connection opened here is owned, and closed, by the pipeline.
func (p *Pipeline) connection(ctx context.Context) (*db.DB, *db.ObservationRepository, error) {
	p.dbMu.Lock()
	defer p.dbMu.Unlock()

	conn, err := db.EnsureConnection(ctx, p.database, p.cfg.Database, p.reconnectTries, p.reconnectDelay, p.logger)
	if conn != p.database {
		p.database = conn
		p.repo = nil
		p.ownsDB = conn != nil
		if conn != nil {
			p.repo = db.NewObservationRepository(conn)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("database unavailable: %w", err)
	}
	return p.database, p.repo, nil
}

func (p *Pipeline) persist(updates []timeline.Update) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, repo, err := p.connection(ctx)
	if err != nil {
		p.logger.Error("Failed to store observations", slog.Any("error", err))
		return 0
	}

	var n int
	err = db.WithRetry(ctx, func() error {
		var err error
		n, err = repo.Insert(ctx, updates)
		return err
	}, 2)
	if err != nil {
		p.logger.Error("Failed to store observations", slog.Any("error", err))
		return 0
	}
	return n
}

// Run polls every feed and sweeps stale aircraft until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, f := range p.Feeds {
		wg.Add(1)
		go func(f *adsb.Feed) {
			defer wg.Done()
			f.Run(ctx)
		}(f)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Store.RunPruner(ctx, p.cfg.Timeline.PruneInterval(), time.Now)
	}()

	if p.recording {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runCleanup(ctx)
		}()
	}

	wg.Wait()
}

func (p *Pipeline) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn, _, err := p.connection(ctx)
			if err != nil {
				p.logger.Error("Cleanup skipped", slog.Any("error", err))
				continue
			}
			removed, err := conn.CleanupOldData(ctx, conn.Retention())
			if err != nil {
				p.logger.Error("Cleanup failed", slog.Any("error", err))
				continue
			}
			p.logger.Info("Cleanup completed", slog.Int64("observations_removed", removed))
		}
	}
}

// Stats returns recorded-observation statistics, or false without a database.
func (p *Pipeline) Stats(ctx context.Context) (db.ObservationStats, bool, error) {
	if !p.recording {
		return db.ObservationStats{}, false, nil
	}
	_, repo, err := p.connection(ctx)
	if err != nil {
		return db.ObservationStats{}, true, err
	}
	stats, err := repo.Stats(ctx)
	return stats, true, err
}

// Close releases the source clients and flushes the archive. The database
// passed to WithDatabase is owned by the caller; a replacement connection
// opened after it dropped is closed here.
func (p *Pipeline) Close() error {
	var errs []error
	p.dbMu.Lock()
	if p.ownsDB && p.database != nil {
		errs = append(errs, p.database.Close())
		p.database = nil
	}
	p.dbMu.Unlock()
	for _, c := range p.clients {
		errs = append(errs, c.Close())
	}
	if p.archive != nil {
		errs = append(errs, p.archive.Close())
	}
	return errors.Join(errs...)
}

// ArchivePath returns a new archive file name in dir for a run starting at t.
func ArchivePath(dir string, t time.Time) string {
	return filepath.Join(dir, "skytrail-"+t.UTC().Format("20060102T150405Z")+".sth")
}

// OpenArchive creates dir if needed and opens a new archive for a run starting at t.
func OpenArchive(dir string, t time.Time) (*history.Writer, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create history dir: %w", err)
	}
	path := ArchivePath(dir, t)
	w, err := history.Create(path)
	if err != nil {
		return nil, "", err
	}
	return w, path, nil
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strings.ToLower(strings.TrimSpace(id)))
	}
	return out
}
