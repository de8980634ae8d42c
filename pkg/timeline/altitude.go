package timeline

import "math"

// maxAltitudeBlend caps how much smoothstep easing is mixed into the
// altitude curve.
const maxAltitudeBlend = 0.7

// segmentRate returns the climb rate (m/s) implied by two samples' altitudes.
func segmentRate(a, b *Observation) float64 {
	secs := b.ObservedAt.Sub(a.ObservedAt).Seconds()
	if secs <= 0 {
		return 0
	}
	return (b.Position.Altitude - a.Position.Altitude) / secs
}

// altitudeBlend compares the climb rate of the segment (bi, ai) with its
// neighbours. A steady climb gives 0; a level-off or a start of climb gives
// up to maxAltitudeBlend.
func (e *engine) altitudeBlend(tl *Timeline, bi, ai int) float64 {
	rate := segmentRate(tl.obs.at(bi), tl.obs.at(ai))
	delta := 0.0
	if bi > 0 {
		delta = math.Abs(rate - segmentRate(tl.obs.at(bi-1), tl.obs.at(bi)))
	}
	if ai+1 < tl.obs.len() {
		delta = math.Max(delta, math.Abs(segmentRate(tl.obs.at(ai), tl.obs.at(ai+1))-rate))
	}
	if !finite(delta) {
		return 0
	}
	return math.Min(maxAltitudeBlend, delta/(3*e.cfg.VerticalRateThreshold))
}

// easeAltitude moves from one altitude to another at progress s, mixing a
// linear ramp with a smoothstep curve by blend.
func easeAltitude(from, to, s, blend float64) float64 {
	eased := s * s * (3 - 2*s)
	return from + (to-from)*lerp(s, eased, blend)
}

// verticalRate prefers reported rates and falls back to the segment's
// altitude change, which is steadier than differentiating the eased curve.
func verticalRate(before, after *Observation, t float64) float64 {
	switch {
	case before.VerticalRate != nil && after.VerticalRate != nil:
		return lerp(*before.VerticalRate, *after.VerticalRate, t)
	case before.VerticalRate != nil:
		return *before.VerticalRate
	case after.VerticalRate != nil:
		return *after.VerticalRate
	default:
		return segmentRate(before, after)
	}
}
