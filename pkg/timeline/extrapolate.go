package timeline

import "github.com/unklstewy/skytrail/pkg/coordinates"

// extrapolate projects the newest sample forward when the display time has
// run past it. Elapsed time is clamped to MaxExtrapolation so the position
// freezes rather than diverging when a feed stalls.
func (e *engine) extrapolate(tl *Timeline, st DisplayState, bi int, in entityCache) (DisplayState, entityCache, bool) {
	before := tl.obs.at(bi)
	applySample(&st, before)

	heading, reliable := e.deriveHeading(tl, bi, in.heading)
	st.ReliableHeading = heading

	elapsed := st.DisplayTime.Sub(before.ObservedAt)
	clamped := false
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > e.cfg.MaxExtrapolation {
		elapsed = e.cfg.MaxExtrapolation
		clamped = true
	}
	secs := elapsed.Seconds()
	st.Extrapolating = elapsed > 0

	direction := heading
	if before.GroundTrack != nil && finite(*before.GroundTrack) {
		direction = *before.GroundTrack
	}
	speed := before.GroundSpeed
	if !finite(speed) || speed < 0 {
		speed = 0
	}

	if dist := speed * coordinates.KnotsToMetersPerSecond * secs; dist > 0 && finite(direction) {
		st.Position = coordinates.Destination(before.Position, direction, dist)
	}
	if before.VerticalRate != nil && finite(*before.VerticalRate) {
		st.Position.Altitude = before.Position.Altitude + *before.VerticalRate*secs
	}

	e.tracer.Extrapolated(tl.ID, elapsed, clamped)

	// No target while extrapolating: the next sample reconciles from here.
	out := entityCache{heading: in.heading, rendered: &st.Position}
	if reliable {
		out.heading = &heading
	}
	return st, out, true
}
