package timeline

import (
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// reconState is an active reconciliation segment: the drawn position glides
// from start (captured at startDisplayTime) to the observation taken at target.
type reconState struct {
	target           time.Time
	start            coordinates.Geographic
	startDisplayTime time.Time
}

// progress returns how far along the segment displayTime is, in [0, 1].
func (r reconState) progress(displayTime time.Time) float64 {
	span := r.target.Sub(r.startDisplayTime)
	if span <= 0 {
		return 1
	}
	return clamp01(float64(displayTime.Sub(r.startDisplayTime)) / float64(span))
}

// reconcile returns the segment to use for the bracket (before, after). The
// cached segment is kept while it still targets after; otherwise a new one
// starts from whatever was drawn last, or from before on first sighting.
func (e *engine) reconcile(id string, before, after *Observation, displayTime time.Time, in entityCache) reconState {
	if in.recon != nil && in.recon.target.Equal(after.ObservedAt) {
		return *in.recon
	}

	r := reconState{
		target:           after.ObservedAt,
		start:            before.Position,
		startDisplayTime: before.ObservedAt,
	}
	if in.rendered != nil {
		r.start = *in.rendered
		r.startDisplayTime = displayTime
	}
	e.tracer.ReconcileStarted(id, r.target, in.rendered != nil)
	return r
}
