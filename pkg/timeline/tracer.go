package timeline

import (
	"log/slog"
	"time"
)

// DropReason says why a position sample was not added to a timeline.
type DropReason string

const (
	// DropThrottled: received within MinSampleInterval of the previous sample
	DropThrottled DropReason = "throttled"

	// DropNotNewer: observed at or before the newest retained sample
	DropNotNewer DropReason = "not_newer"
)

// Tracer receives engine events for debugging individual aircraft.
// All methods are called with the store lock held and must not call back
// into the Store.
type Tracer interface {
	ObservationAdded(id string, obs Observation, count int)
	ObservationDropped(id string, obs Observation, reason DropReason)
	ReconcileStarted(id string, target time.Time, fromRendered bool)
	Extrapolated(id string, elapsed time.Duration, clamped bool)
	Pruned(id string, idle time.Duration)
}

// NopTracer ignores every event.
type NopTracer struct{}

func (NopTracer) ObservationAdded(string, Observation, int)          {}
func (NopTracer) ObservationDropped(string, Observation, DropReason) {}
func (NopTracer) ReconcileStarted(string, time.Time, bool)           {}
func (NopTracer) Extrapolated(string, time.Duration, bool)           {}
func (NopTracer) Pruned(string, time.Duration)                       {}

// LogTracer writes engine events to a structured logger at debug level.
// When Filter is set only aircraft it accepts are logged.
type LogTracer struct {
	Logger *slog.Logger
	Filter func(id string) bool
}

// NewLogTracer returns a tracer that logs only the given aircraft ids, or
// every aircraft when ids is empty.
func NewLogTracer(logger *slog.Logger, ids ...string) *LogTracer {
	lt := &LogTracer{Logger: logger}
	if len(ids) > 0 {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		lt.Filter = func(id string) bool { return set[id] }
	}
	return lt
}

func (lt *LogTracer) enabled(id string) bool {
	return lt != nil && lt.Logger != nil && (lt.Filter == nil || lt.Filter(id))
}

func (lt *LogTracer) ObservationAdded(id string, obs Observation, count int) {
	if lt.enabled(id) {
		lt.Logger.Debug("observation added", slog.String("id", id),
			slog.Time("observed_at", obs.ObservedAt), slog.String("source", obs.Source),
			slog.Int("count", count))
	}
}

func (lt *LogTracer) ObservationDropped(id string, obs Observation, reason DropReason) {
	if lt.enabled(id) {
		lt.Logger.Debug("observation dropped", slog.String("id", id),
			slog.Time("observed_at", obs.ObservedAt), slog.String("reason", string(reason)))
	}
}

func (lt *LogTracer) ReconcileStarted(id string, target time.Time, fromRendered bool) {
	if lt.enabled(id) {
		lt.Logger.Debug("reconcile started", slog.String("id", id),
			slog.Time("target", target), slog.Bool("from_rendered", fromRendered))
	}
}

func (lt *LogTracer) Extrapolated(id string, elapsed time.Duration, clamped bool) {
	if lt.enabled(id) {
		lt.Logger.Debug("extrapolating", slog.String("id", id),
			slog.Duration("elapsed", elapsed), slog.Bool("clamped", clamped))
	}
}

func (lt *LogTracer) Pruned(id string, idle time.Duration) {
	if lt.enabled(id) {
		lt.Logger.Debug("timeline pruned", slog.String("id", id), slog.Duration("idle", idle))
	}
}
