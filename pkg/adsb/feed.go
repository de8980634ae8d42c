package adsb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Sink receives converted updates. *timeline.Store satisfies it.
type Sink interface {
	AddObservations(updates []timeline.Update) int
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(updates []timeline.Update) int

func (f SinkFunc) AddObservations(updates []timeline.Update) int { return f(updates) }

// Tee delivers every batch to each sink in turn and returns the count
// reported by the first.
func Tee(first Sink, rest ...Sink) Sink {
	return SinkFunc(func(updates []timeline.Update) int {
		n := first.AddObservations(updates)
		for _, s := range rest {
			s.AddObservations(updates)
		}
		return n
	})
}

// Region is a circular area polled by a Feed.
type Region struct {
	Name      string
	Latitude  float64
	Longitude float64
	RadiusNM  float64
}

// Feed polls one DataSource for a set of regions and forwards the results
// to a Sink as timeline updates. Every sample is stamped with the feed's
// name and display delay at the moment it is converted.
type Feed struct {
	Name         string
	Source       DataSource
	Regions      []Region
	Interval     time.Duration
	DisplayDelay time.Duration
	Retry        RetryConfig
	Sink         Sink
	Logger       *logging.Logger

	// Now returns the local receive time; nil means time.Now
	Now func() time.Time

	// altitudes holds each aircraft's last reported altitude, carried into
	// reports that have none
	altitudes map[string]lastAltitude
}

type lastAltitude struct {
	feet float64
	at   time.Time
}

// altitudeMemory is how long a carried altitude stays usable.
const altitudeMemory = 10 * time.Minute

// FeedStats summarizes one poll.
type FeedStats struct {
	Aircraft int
	Kept     int
	Errors   int
	// NoAltitude counts reports skipped for lack of any known altitude
	NoAltitude int
}

func (f *Feed) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Poll fetches every region once and delivers the merged result. An
// aircraft seen in several overlapping regions is delivered once, using the
// freshest report. The returned error is non-nil only when every region failed.
func (f *Feed) Poll(ctx context.Context) (FeedStats, error) {
	var stats FeedStats
	latest := make(map[string]Aircraft)
	var order []string
	var lastErr error

	for _, r := range f.Regions {
		aircraft, err := Retry(ctx, f.Retry, func() ([]Aircraft, error) {
			return f.Source.GetAircraft(ctx, r.Latitude, r.Longitude, r.RadiusNM)
		})
		if err != nil {
			stats.Errors++
			lastErr = err
			f.Logger.Warn("Failed to fetch region",
				slog.String("feed", f.Name),
				slog.String("region", r.Name),
				slog.Any("error", err))
			continue
		}
		for _, ac := range aircraft {
			id := ac.ID()
			if id == "" {
				continue
			}
			prev, seen := latest[id]
			if !seen {
				order = append(order, id)
			}
			if !seen || ac.LastSeen.After(prev.LastSeen) {
				latest[id] = ac
			}
		}
	}

	if len(f.Regions) > 0 && stats.Errors == len(f.Regions) {
		return stats, fmt.Errorf("feed %s: all regions failed: %w", f.Name, lastErr)
	}

	received := f.now()
	updates := make([]timeline.Update, 0, len(order))
	for _, id := range order {
		ac, ok := f.withAltitude(latest[id], received)
		if !ok {
			stats.NoAltitude++
			f.Logger.Debug("Skipping report without altitude", slog.String("feed", f.Name), slog.String("icao", id))
			continue
		}
		updates = append(updates, ac.Observation(f.Name, f.DisplayDelay, received))
	}
	f.forgetAltitudes(received)
	stats.Aircraft = len(updates)
	if f.Sink != nil && len(updates) > 0 {
		stats.Kept = f.Sink.AddObservations(updates)
	}
	return stats, nil
}

// withAltitude fills in the last known altitude for a report that has
// none. ok is false when the aircraft has never reported one.
func (f *Feed) withAltitude(ac Aircraft, now time.Time) (Aircraft, bool) {
	if f.altitudes == nil {
		f.altitudes = make(map[string]lastAltitude)
	}
	id := ac.ID()
	if ac.AltitudeKnown {
		f.altitudes[id] = lastAltitude{feet: ac.Altitude, at: now}
		return ac, true
	}
	last, ok := f.altitudes[id]
	if !ok || now.Sub(last.at) > altitudeMemory {
		return ac, false
	}
	ac.Altitude, ac.AltitudeKnown = last.feet, true
	return ac, true
}

func (f *Feed) forgetAltitudes(now time.Time) {
	for id, last := range f.altitudes {
		if now.Sub(last.at) > altitudeMemory {
			delete(f.altitudes, id)
		}
	}
}

// Run polls every Interval until ctx is cancelled. It polls once
// immediately on start.
func (f *Feed) Run(ctx context.Context) error {
	interval := f.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	f.Logger.Info("Feed started",
		slog.String("feed", f.Name),
		slog.Int("regions", len(f.Regions)),
		slog.Duration("interval", interval),
		slog.Duration("display_delay", f.DisplayDelay))

	for {
		stats, err := f.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			f.Logger.Error("Poll failed", slog.String("feed", f.Name), slog.Any("error", err))
		} else {
			f.Logger.Debug("Poll complete",
				slog.String("feed", f.Name),
				slog.Int("aircraft", stats.Aircraft),
				slog.Int("kept", stats.Kept))
		}

		select {
		case <-ctx.Done():
			f.Logger.Info("Feed stopped", slog.String("feed", f.Name))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
