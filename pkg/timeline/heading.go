package timeline

import "github.com/unklstewy/skytrail/pkg/coordinates"

// deriveHeading resolves the most trustworthy heading for the sample at
// primary. It tries, in order: the sample's own heading when flagged
// reliable, the bearing of the most recent pair of samples far enough apart,
// the cached heading, and finally the sample's raw heading. ok reports
// whether one of the first two succeeded; only those may refresh the cache.
func (e *engine) deriveHeading(tl *Timeline, primary int, cached *float64) (heading float64, ok bool) {
	p := tl.obs.at(primary)
	if p.HeadingReliable && finite(p.Heading) {
		return coordinates.NormalizeAzimuth(p.Heading), true
	}

	for i := primary; i > 0; i-- {
		a, b := tl.obs.at(i-1), tl.obs.at(i)
		d := coordinates.DistanceMeters(a.Position, b.Position)
		if !finite(d) || d < e.cfg.MinHeadingDisplacement {
			continue
		}
		if brg := coordinates.Bearing(a.Position, b.Position); finite(brg) {
			return brg, true
		}
	}

	if cached != nil {
		return *cached, false
	}
	return coordinates.NormalizeAzimuth(p.Heading), false
}
