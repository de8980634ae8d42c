package timeline

import (
	"sync"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return base.Add(time.Duration(sec * float64(time.Second)))
}

func ptr[T any](v T) *T { return &v }

// sample builds an observation taken and received at the same instant.
func sample(sec, lat, lon, alt float64) Observation {
	return Observation{
		Position:   coordinates.Geographic{Latitude: lat, Longitude: lon, Altitude: alt},
		ObservedAt: at(sec),
		ReceivedAt: at(sec),
		Source:     "test",
	}
}

type recordingTracer struct {
	mu        sync.Mutex
	added     int
	dropped   []DropReason
	reconcile []bool
	pruned    []string
}

func (r *recordingTracer) ObservationAdded(string, Observation, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added++
}

func (r *recordingTracer) ObservationDropped(_ string, _ Observation, reason DropReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, reason)
}

func (r *recordingTracer) ReconcileStarted(_ string, _ time.Time, fromRendered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconcile = append(r.reconcile, fromRendered)
}

func (r *recordingTracer) Extrapolated(string, time.Duration, bool) {}

func (r *recordingTracer) Pruned(id string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, id)
}
