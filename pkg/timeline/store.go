package timeline

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// ErrUnknownEntity is returned when an operation names an aircraft the store
// has no timeline for.
var ErrUnknownEntity = errors.New("timeline: unknown entity")

// caches are the per-aircraft derived state. The three maps are always
// written together so that removing an aircraft never leaves a stray entry.
type caches struct {
	heading  map[string]float64
	rendered map[string]coordinates.Geographic
	recon    map[string]reconState
}

func newCaches(size int) caches {
	return caches{
		heading:  make(map[string]float64, size),
		rendered: make(map[string]coordinates.Geographic, size),
		recon:    make(map[string]reconState, size),
	}
}

func (c caches) get(id string) entityCache {
	var ec entityCache
	if h, ok := c.heading[id]; ok {
		ec.heading = &h
	}
	if p, ok := c.rendered[id]; ok {
		ec.rendered = &p
	}
	if r, ok := c.recon[id]; ok {
		ec.recon = &r
	}
	return ec
}

func (c caches) put(id string, ec entityCache) {
	if ec.heading != nil {
		c.heading[id] = *ec.heading
	}
	if ec.rendered != nil {
		c.rendered[id] = *ec.rendered
	}
	if ec.recon != nil {
		c.recon[id] = *ec.recon
	}
}

func (c caches) delete(id string) {
	delete(c.heading, id)
	delete(c.rendered, id)
	delete(c.recon, id)
}

// Store is the timeline repository: every tracked aircraft's observation
// history plus the derived caches used to draw it smoothly.
//
// Peek is a pure read. Advance is the once-per-frame call that computes every
// aircraft and commits the new caches in one step. Store is safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	tracer    Tracer
	timelines map[string]*Timeline
	caches    caches
}

// Option configures a Store.
type Option func(*Store)

// WithTracer installs a tracer for engine events.
func WithTracer(t Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewStore creates an empty store. Zero fields in cfg take their defaults.
func NewStore(cfg Config, opts ...Option) *Store {
	s := &Store{
		cfg:       cfg.withDefaults(),
		tracer:    NopTracer{},
		timelines: make(map[string]*Timeline),
		caches:    newCaches(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// AddObservation ingests one update. Metadata, last source and last receipt
// time are always refreshed; the position sample itself is kept only if it
// arrived at least MinSampleInterval after the previous one and is newer
// than every retained sample. It reports whether the sample was kept.
func (s *Store) AddObservation(id string, obs Observation, meta Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(id, obs, meta)
}

// AddObservations ingests a batch and returns how many samples were kept.
func (s *Store) AddObservations(updates []Update) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := 0
	for _, u := range updates {
		if s.add(u.ID, u.Observation, u.Metadata) {
			kept++
		}
	}
	return kept
}

func (s *Store) add(id string, obs Observation, meta Metadata) bool {
	tl, ok := s.timelines[id]
	if !ok {
		tl = newTimeline(id, s.cfg.Capacity)
		s.timelines[id] = tl
	}
	tl.Metadata = meta
	tl.LastSource = obs.Source
	tl.LastReceivedAt = obs.ReceivedAt

	if prev := tl.obs.newest(); prev != nil {
		if obs.ReceivedAt.Sub(prev.ReceivedAt) < s.cfg.MinSampleInterval {
			s.tracer.ObservationDropped(id, obs, DropThrottled)
			return false
		}
		if !obs.ObservedAt.After(prev.ObservedAt) {
			s.tracer.ObservationDropped(id, obs, DropNotNewer)
			return false
		}
	}

	if tl.obs.push(obs) {
		if r, ok := s.caches.recon[id]; ok && tl.obs.indexOf(r.target) < 0 {
			delete(s.caches.recon, id)
		}
	}
	s.tracer.ObservationAdded(id, obs, tl.obs.len())
	return true
}

// Remove deletes an aircraft's timeline and all of its cached state.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timelines[id]; !ok {
		return ErrUnknownEntity
	}
	s.remove(id)
	return nil
}

func (s *Store) remove(id string) {
	delete(s.timelines, id)
	s.caches.delete(id)
}

// Peek computes one aircraft's display state at now without touching any
// cached state. Repeated calls with the same inputs return the same result.
// ok is false when the aircraft is unknown or has no observations.
func (s *Store) Peek(id string, now time.Time) (DisplayState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.timelines[id]
	if !ok {
		return DisplayState{}, false
	}
	e := engine{cfg: s.cfg, tracer: NopTracer{}}
	st, _, ok := e.compute(tl, now, s.caches.get(id))
	return st, ok
}

// Advance computes every aircraft's display state at now and commits the
// resulting heading, rendered position and reconciliation caches.
func (s *Store) Advance(now time.Time) Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := engine{cfg: s.cfg, tracer: s.tracer}
	frame := make(Frame, len(s.timelines))
	next := newCaches(len(s.timelines))

	for id, tl := range s.timelines {
		in := s.caches.get(id)
		st, out, ok := e.compute(tl, now, in)
		if !ok {
			next.put(id, in)
			continue
		}
		frame[id] = st
		next.put(id, out)
	}

	s.caches = next
	return frame
}

// Status reports whether anything can be drawn yet.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Status
	for _, tl := range s.timelines {
		n := tl.obs.len()
		if n >= 1 {
			st.HasObservations = true
		}
		if n >= 2 {
			st.ReadyToInterpolate = true
			break
		}
	}
	return st
}

// Len returns the number of tracked aircraft.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.timelines)
}

// IDs returns the tracked aircraft ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.timelines))
	for id := range s.timelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Timeline returns a snapshot of one aircraft's timeline.
func (s *Store) Timeline(id string) (Timeline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl, ok := s.timelines[id]
	if !ok {
		return Timeline{}, false
	}
	return tl.clone(), true
}

// LoadHistory replaces the store's contents with a recorded log, for
// scrubbing through past traffic. Samples are replayed in observation order
// with zero display delay and ReceivedAt set to ObservedAt, so Peek and
// Advance at time t show the traffic as it was at t. It returns the number
// of samples kept.
func (s *Store) LoadHistory(updates []Update) int {
	sorted := make([]Update, len(updates))
	copy(sorted, updates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Observation.ObservedAt.Before(sorted[j].Observation.ObservedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.timelines = make(map[string]*Timeline)
	s.caches = newCaches(0)

	kept := 0
	for _, u := range sorted {
		obs := u.Observation
		obs.DisplayDelay = 0
		obs.ReceivedAt = obs.ObservedAt
		if s.add(u.ID, obs, u.Metadata) {
			kept++
		}
	}
	return kept
}
