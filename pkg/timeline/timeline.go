package timeline

import "time"

// Timeline is one aircraft's bounded, time-ordered observation history plus
// its latest metadata.
type Timeline struct {
	ID             string
	Metadata       Metadata
	LastSource     string
	LastReceivedAt time.Time

	obs ring
}

func newTimeline(id string, capacity int) *Timeline {
	return &Timeline{ID: id, obs: newRing(capacity)}
}

// Len returns the number of retained observations.
func (tl *Timeline) Len() int { return tl.obs.len() }

// Observations returns a copy of the retained observations, oldest first.
func (tl *Timeline) Observations() []Observation { return tl.obs.slice() }

func (tl *Timeline) clone() Timeline {
	c := *tl
	c.obs = tl.obs.clone()
	return c
}

// displayTime is the instant the aircraft should be drawn at for wall-clock
// time now. It is anchored on the oldest retained sample: anchoring on the
// newest would jump forward by one update interval whenever a sample arrives.
func (tl *Timeline) displayTime(now time.Time) time.Time {
	oldest := tl.obs.oldest()
	newest := tl.obs.newest()
	return oldest.ObservedAt.Add(now.Sub(oldest.ReceivedAt) - newest.DisplayDelay)
}

// bracket returns the indices of the samples on either side of t such that
// before.ObservedAt <= t < after.ObservedAt. A missing side is -1.
func (tl *Timeline) bracket(t time.Time) (before, after int) {
	n := tl.obs.len()
	before, after = -1, -1
	for i := n - 1; i >= 0; i-- {
		if !tl.obs.at(i).ObservedAt.After(t) {
			before = i
			break
		}
	}
	if before+1 < n {
		after = before + 1
	}
	return before, after
}
