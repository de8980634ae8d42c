package history

import (
	"sort"
	"time"

	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Player scrubs through a recorded log using a timeline.Store. Only a window
// of the log around the playback time is loaded into the store at once.
type Player struct {
	Lookbehind time.Duration
	Lookahead  time.Duration

	store   *timeline.Store
	updates []timeline.Update

	at, from, to time.Time
	loaded       bool
}

// NewPlayer creates a player over updates, which need not be sorted.
func NewPlayer(store *timeline.Store, updates []timeline.Update, lookbehind, lookahead time.Duration) *Player {
	sorted := make([]timeline.Update, len(updates))
	copy(sorted, updates)
	SortUpdates(sorted)

	if lookbehind <= 0 {
		lookbehind = time.Minute
	}
	if lookahead <= 0 {
		lookahead = time.Minute
	}
	return &Player{
		Lookbehind: lookbehind,
		Lookahead:  lookahead,
		store:      store,
		updates:    sorted,
	}
}

// Len returns the number of updates in the log.
func (p *Player) Len() int { return len(p.updates) }

// Start returns the time of the first update in the log.
func (p *Player) Start() time.Time {
	if len(p.updates) == 0 {
		return time.Time{}
	}
	return p.updates[0].Observation.ObservedAt
}

// End returns the time of the last update in the log.
func (p *Player) End() time.Time {
	if len(p.updates) == 0 {
		return time.Time{}
	}
	return p.updates[len(p.updates)-1].Observation.ObservedAt
}

// Seek loads the part of the log around t into the store and returns the
// number of samples kept. The store holds at most Capacity samples per
// aircraft, so each aircraft gets the samples nearest t: up to half of its
// capacity from after t and the rest from at or before t. The loaded window
// shrinks to what every aircraft can still bracket.
func (p *Player) Seek(t time.Time) int {
	p.at = t
	p.from = t.Add(-p.Lookbehind)
	p.to = t.Add(p.Lookahead)
	p.loaded = true

	lo := sort.Search(len(p.updates), func(i int) bool {
		return !p.updates[i].Observation.ObservedAt.Before(p.from)
	})
	hi := sort.Search(len(p.updates), func(i int) bool {
		return p.updates[i].Observation.ObservedAt.After(p.to)
	})

	var order []string
	byID := make(map[string][]timeline.Update)
	for _, u := range p.updates[lo:hi] {
		if _, ok := byID[u.ID]; !ok {
			order = append(order, u.ID)
		}
		byID[u.ID] = append(byID[u.ID], u)
	}

	capacity := p.store.Config().Capacity
	var window []timeline.Update
	for _, id := range order {
		window = append(window, p.nearest(byID[id], t, capacity)...)
	}
	return p.store.LoadHistory(window)
}

// nearest picks up to capacity samples of one aircraft around t, narrowing
// the loaded window when samples had to be left out.
func (p *Player) nearest(samples []timeline.Update, t time.Time, capacity int) []timeline.Update {
	split := sort.Search(len(samples), func(i int) bool {
		return samples[i].Observation.ObservedAt.After(t)
	})
	behind, ahead := samples[:split], samples[split:]

	na := min(len(ahead), capacity/2)
	if capacity > 1 && na == 0 && len(ahead) > 0 {
		na = 1
	}
	nb := min(len(behind), capacity-na)
	na = min(len(ahead), capacity-nb)

	if na < len(ahead) {
		last := t
		if na > 0 {
			last = ahead[na-1].Observation.ObservedAt
		}
		if last.Before(p.to) {
			p.to = last
		}
	}
	if nb < len(behind) && nb > 0 {
		if first := behind[len(behind)-nb].Observation.ObservedAt; first.After(p.from) {
			p.from = first
		}
	}

	out := make([]timeline.Update, 0, nb+na)
	out = append(out, behind[len(behind)-nb:]...)
	return append(out, ahead[:na]...)
}

// needsSeek reports whether t has moved more than halfway from the seek
// point towards either end of the loaded window, where aircraft could run
// out of samples to interpolate between.
func (p *Player) needsSeek(t time.Time) bool {
	if !p.loaded {
		return true
	}
	if t.Before(p.at.Add(-p.at.Sub(p.from)/2)) && p.from.After(p.Start()) {
		return true
	}
	return t.After(p.at.Add(p.to.Sub(p.at)/2)) && p.to.Before(p.End())
}

// Frame returns the traffic as it was at t. Aircraft not yet seen at t, or
// whose newest sample is older than the store's stale timeout, are left out.
func (p *Player) Frame(t time.Time) timeline.Frame {
	if p.needsSeek(t) {
		p.Seek(t)
	}
	frame := p.store.Advance(t)
	stale := p.store.Config().StaleTimeout
	for id, st := range frame {
		if st.Age > stale {
			delete(frame, id)
			continue
		}
		// A negative age means the newest sample is still ahead of t, so
		// the first one may be too.
		if st.Age < 0 {
			if tl, ok := p.store.Timeline(id); ok {
				if obs := tl.Observations(); len(obs) > 0 && obs[0].ObservedAt.After(t) {
					delete(frame, id)
				}
			}
		}
	}
	return frame
}
