package timeline

import (
	"math"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// entityCache is the derived per-aircraft state carried between ticks.
// A nil pointer means "no entry".
type entityCache struct {
	heading  *float64
	rendered *coordinates.Geographic
	recon    *reconState
}

// engine holds the pure display-state math. It never touches Store maps;
// callers pass the cached state in and decide whether to keep what comes out.
type engine struct {
	cfg    Config
	tracer Tracer
}

// compute returns the display state of tl at wall-clock time now together
// with the cache state that should follow it. ok is false when the timeline
// has no observations.
func (e *engine) compute(tl *Timeline, now time.Time, in entityCache) (DisplayState, entityCache, bool) {
	n := tl.obs.len()
	if n == 0 {
		return DisplayState{}, in, false
	}

	newest := tl.obs.newest()
	displayTime := tl.displayTime(now)
	bi, ai := tl.bracket(displayTime)

	st := DisplayState{
		ID:               tl.ID,
		Metadata:         tl.Metadata,
		Source:           tl.LastSource,
		DisplayDelay:     newest.DisplayDelay,
		Age:              now.Sub(newest.ReceivedAt),
		ObservationCount: n,
		DisplayTime:      displayTime,
	}

	// A reconciliation target that has left the buffer is meaningless.
	if in.recon != nil && tl.obs.indexOf(in.recon.target) < 0 {
		in.recon = nil
	}

	switch {
	case bi >= 0 && ai >= 0:
		return e.interpolate(tl, st, bi, ai, in)
	case bi >= 0:
		return e.extrapolate(tl, st, bi, in)
	default:
		return e.passThrough(tl, st, ai, in)
	}
}

// interpolate handles a display time between two retained samples.
func (e *engine) interpolate(tl *Timeline, st DisplayState, bi, ai int, in entityCache) (DisplayState, entityCache, bool) {
	before, after := tl.obs.at(bi), tl.obs.at(ai)
	t := fraction(st.DisplayTime, before.ObservedAt, after.ObservedAt)

	// Position comes from the reconciliation segment, which may start from
	// the last drawn point rather than from before.
	recon := e.reconcile(tl.ID, before, after, st.DisplayTime, in)
	reconT := recon.progress(st.DisplayTime)
	blend := e.altitudeBlend(tl, bi, ai)

	st.Position = coordinates.Lerp(recon.start, after.Position, reconT)
	st.Position.Altitude = easeAltitude(recon.start.Altitude, after.Position.Altitude, reconT, blend)

	// Everything else is relative to the observation pair.
	st.Heading = coordinates.InterpolateHeading(before.Heading, after.Heading, t)
	st.GroundSpeed = lerp(before.GroundSpeed, after.GroundSpeed, t)
	st.GroundTrack = interpolateTrack(before.GroundTrack, after.GroundTrack, t)
	st.Roll = interpolateOptional(before.Roll, after.Roll, t)
	st.OnGround = after.OnGround
	vr := verticalRate(before, after, t)
	st.VerticalRate = &vr

	heading, reliable := e.deriveHeading(tl, ai, in.heading)
	st.ReliableHeading = heading

	out := entityCache{
		heading:  in.heading,
		rendered: &st.Position,
		recon:    &recon,
	}
	if reliable {
		out.heading = &heading
	}
	return st, out, true
}

// passThrough handles a display time earlier than every retained sample:
// the oldest sample is shown unmodified.
func (e *engine) passThrough(tl *Timeline, st DisplayState, ai int, in entityCache) (DisplayState, entityCache, bool) {
	after := tl.obs.at(ai)
	applySample(&st, after)

	heading, reliable := e.deriveHeading(tl, ai, in.heading)
	st.ReliableHeading = heading

	out := entityCache{heading: in.heading, rendered: &st.Position}
	if reliable {
		out.heading = &heading
	}
	return st, out, true
}

// applySample copies a sample's fields into a display state.
func applySample(st *DisplayState, o *Observation) {
	st.Position = o.Position
	st.Heading = coordinates.NormalizeAzimuth(o.Heading)
	st.GroundSpeed = o.GroundSpeed
	st.GroundTrack = o.GroundTrack
	st.OnGround = o.OnGround
	st.Roll = o.Roll
	st.VerticalRate = o.VerticalRate
}

// fraction returns where t lies between t0 and t1, unclamped.
func fraction(t, t0, t1 time.Time) float64 {
	span := t1.Sub(t0)
	if span <= 0 {
		return 1
	}
	return float64(t.Sub(t0)) / float64(span)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// interpolateOptional blends two optional values, falling back to whichever
// side is present.
func interpolateOptional(a, b *float64, t float64) *float64 {
	var v float64
	switch {
	case a != nil && b != nil:
		v = lerp(*a, *b, t)
	case a != nil:
		v = *a
	case b != nil:
		v = *b
	default:
		return nil
	}
	return &v
}

// interpolateTrack is interpolateOptional along the shortest arc.
func interpolateTrack(a, b *float64, t float64) *float64 {
	var v float64
	switch {
	case a != nil && b != nil:
		v = coordinates.InterpolateHeading(*a, *b, t)
	case a != nil:
		v = *a
	case b != nil:
		v = *b
	default:
		return nil
	}
	return &v
}
