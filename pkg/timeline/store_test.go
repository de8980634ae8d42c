package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolationExample(t *testing.T) {
	s := NewStore(DefaultConfig())

	a := sample(0, 0, 0, 1000)
	a.VerticalRate = ptr(10.0)
	b := sample(10, 0.001, 0, 1100)
	b.VerticalRate = ptr(10.0)
	require.True(t, s.AddObservation("abc123", a, Metadata{}))
	require.True(t, s.AddObservation("abc123", b, Metadata{}))

	st, ok := s.Peek("abc123", at(5))
	require.True(t, ok)
	assert.InDelta(t, 0.0005, st.Position.Latitude, 1e-9)
	assert.InDelta(t, 0.0, st.Position.Longitude, 1e-12)
	assert.InDelta(t, 1050.0, st.Position.Altitude, 1e-6)
	assert.InDelta(t, 10.0, *st.VerticalRate, 1e-9)
	assert.False(t, st.Extrapolating)
	assert.True(t, st.DisplayTime.Equal(at(5)))
	assert.Equal(t, 2, st.ObservationCount)
}

func TestInterpolationFraction(t *testing.T) {
	s := NewStore(DefaultConfig())
	s.AddObservation("a", sample(0, 10, 20, 0), Metadata{})
	s.AddObservation("a", sample(8, 10.4, 20.8, 0), Metadata{})

	for _, sec := range []float64{0.5, 2, 4, 6.25, 7.9} {
		st, ok := s.Peek("a", at(sec))
		require.True(t, ok)
		frac := sec / 8
		assert.InDelta(t, 10+0.4*frac, st.Position.Latitude, 1e-9, "t=%v", sec)
		assert.InDelta(t, 20+0.8*frac, st.Position.Longitude, 1e-9, "t=%v", sec)
	}
}

func TestHeadingWrapsThroughNorth(t *testing.T) {
	s := NewStore(DefaultConfig())
	a := sample(0, 0, 0, 0)
	a.Heading = 350
	b := sample(10, 0, 0, 0)
	b.Heading = 10
	s.AddObservation("a", a, Metadata{})
	s.AddObservation("a", b, Metadata{})

	prev := 350.0
	for sec := 1.0; sec < 10; sec++ {
		st, ok := s.Peek("a", at(sec))
		require.True(t, ok)
		step := angleStep(prev, st.Heading)
		assert.InDelta(t, 2.0, step, 1e-9, "t=%v heading=%v", sec, st.Heading)
		prev = st.Heading
	}

	st, _ := s.Peek("a", at(5))
	assert.InDelta(t, 0.0, angleStep(0, st.Heading), 1e-9)
}

func TestPeekIsPure(t *testing.T) {
	s := NewStore(DefaultConfig())
	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{Callsign: "TEST1"})
	s.AddObservation("a", sample(10, 0.01, 0, 100), Metadata{Callsign: "TEST1"})

	first, ok := s.Peek("a", at(3))
	require.True(t, ok)
	assert.Empty(t, s.caches.rendered)
	assert.Empty(t, s.caches.recon)
	assert.Empty(t, s.caches.heading)

	s.Advance(at(2))
	snapshot := s.caches.get("a")

	for i := 0; i < 3; i++ {
		again, ok := s.Peek("a", at(3))
		require.True(t, ok)
		if diff := cmp.Diff(first.Metadata, again.Metadata); diff != "" {
			t.Errorf("metadata changed (-first +again):\n%s", diff)
		}
	}
	p1, _ := s.Peek("a", at(4))
	p2, _ := s.Peek("a", at(4))
	if diff := cmp.Diff(p1, p2); diff != "" {
		t.Errorf("Peek not idempotent (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot, s.caches.get("a"), cmp.AllowUnexported(entityCache{}, reconState{})); diff != "" {
		t.Errorf("Peek mutated caches (-before +after):\n%s", diff)
	}
}

func TestPeekUnknown(t *testing.T) {
	s := NewStore(DefaultConfig())
	_, ok := s.Peek("nobody", at(0))
	assert.False(t, ok)
}

func TestReconcileFromExtrapolatedPosition(t *testing.T) {
	tr := &recordingTracer{}
	s := NewStore(DefaultConfig(), WithTracer(tr))

	a := sample(0, 0, 0, 0)
	b := sample(10, 0.001, 0, 0)
	b.GroundSpeed = 100
	b.GroundTrack = ptr(0.0)
	s.AddObservation("a", a, Metadata{})
	s.AddObservation("a", b, Metadata{})

	frame := s.Advance(at(12))
	drawn := frame["a"]
	require.True(t, drawn.Extrapolating)
	assert.Greater(t, drawn.Position.Latitude, 0.001)
	_, hasTarget := s.caches.recon["a"]
	assert.False(t, hasTarget, "extrapolation clears reconciliation")

	// The next sample arrives while the aircraft is being extrapolated.
	c := sample(20, 0.003, 0, 0)
	c.ReceivedAt = at(12.5)
	require.True(t, s.AddObservation("a", c, Metadata{}))

	frame = s.Advance(at(12))
	got := frame["a"]
	assert.False(t, got.Extrapolating)
	assert.InDelta(t, drawn.Position.Latitude, got.Position.Latitude, 1e-12)
	assert.InDelta(t, drawn.Position.Longitude, got.Position.Longitude, 1e-12)

	recon, ok := s.caches.recon["a"]
	require.True(t, ok)
	assert.True(t, recon.target.Equal(at(20)))
	assert.Equal(t, drawn.Position, recon.start)

	// Halfway through the segment the position is halfway to the target.
	frame = s.Advance(at(16))
	mid := (drawn.Position.Latitude + 0.003) / 2
	assert.InDelta(t, mid, frame["a"].Position.Latitude, 1e-9)

	frame = s.Advance(at(20))
	assert.InDelta(t, 0.003, frame["a"].Position.Latitude, 1e-9)

	assert.Contains(t, tr.reconcile, true)
}

func TestReconcileContinuityAcrossTargetChange(t *testing.T) {
	s := NewStore(DefaultConfig())
	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{})
	s.AddObservation("a", sample(10, 0.001, 0, 0), Metadata{})

	prev := s.Advance(at(9.9))["a"]

	c := sample(20, 0.0015, 0.001, 0)
	s.AddObservation("a", c, Metadata{})

	// Display time crosses into the next segment; the new segment must start
	// where the last frame was drawn.
	next := s.Advance(at(10.1))["a"]
	recon := s.caches.recon["a"]
	assert.True(t, recon.target.Equal(at(20)))
	assert.Equal(t, prev.Position, recon.start)
	assert.InDelta(t, prev.Position.Latitude, next.Position.Latitude, 1e-5)
	assert.InDelta(t, prev.Position.Longitude, next.Position.Longitude, 1e-5)
}

// requireReconTargetsRetained checks that every reconciliation target is
// still in its aircraft's buffer.
func requireReconTargetsRetained(t *testing.T, s *Store) {
	t.Helper()
	for id, r := range s.caches.recon {
		tl, ok := s.timelines[id]
		require.True(t, ok, "reconciliation state for unknown aircraft %s", id)
		require.GreaterOrEqual(t, tl.obs.indexOf(r.target), 0, "%s targets evicted sample %v", id, r.target)
	}
}

func TestEvictedTargetClearsReconciliation(t *testing.T) {
	tr := &recordingTracer{}
	s := NewStore(Config{Capacity: 3}, WithTracer(tr))
	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{})
	s.AddObservation("a", sample(10, 0.001, 0, 0), Metadata{})

	drawn := s.Advance(at(5))["a"]
	require.True(t, s.caches.recon["a"].target.Equal(at(10)))
	require.Equal(t, []bool{false}, tr.reconcile)

	s.AddObservation("a", sample(20, 0.002, 0, 0), Metadata{})
	s.AddObservation("a", sample(30, 0.003, 0, 0), Metadata{})
	_, ok := s.caches.recon["a"]
	assert.True(t, ok, "target still buffered")
	requireReconTargetsRetained(t, s)

	// Evicts the sample taken at 10s.
	s.AddObservation("a", sample(40, 0.004, 0, 0), Metadata{})
	_, ok = s.caches.recon["a"]
	assert.False(t, ok, "evicted target is cleared")
	requireReconTargetsRetained(t, s)

	s.Advance(at(25))
	assert.Equal(t, []bool{false, true}, tr.reconcile, "new segment starts from the drawn position")
	recon := s.caches.recon["a"]
	assert.True(t, recon.target.Equal(at(30)))
	assert.Equal(t, drawn.Position, recon.start)
	requireReconTargetsRetained(t, s)
}

func TestFirstSightingUsesObservationFraction(t *testing.T) {
	tr := &recordingTracer{}
	s := NewStore(DefaultConfig(), WithTracer(tr))
	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{})
	s.AddObservation("a", sample(10, 0.001, 0, 0), Metadata{})

	frame := s.Advance(at(2.5))
	assert.InDelta(t, 0.00025, frame["a"].Position.Latitude, 1e-12)
	assert.Equal(t, []bool{false}, tr.reconcile)

	// Same target on the next tick: no new segment.
	frame = s.Advance(at(5))
	assert.InDelta(t, 0.0005, frame["a"].Position.Latitude, 1e-12)
	assert.Len(t, tr.reconcile, 1)
}

func TestExtrapolationExample(t *testing.T) {
	s := NewStore(DefaultConfig())
	o := sample(0, 0, 0, 3000)
	o.GroundSpeed = 100
	o.GroundTrack = ptr(90.0)
	s.AddObservation("a", o, Metadata{})

	st, ok := s.Peek("a", at(10))
	require.True(t, ok)
	assert.True(t, st.Extrapolating)
	assert.Greater(t, st.Position.Longitude, 0.0)
	assert.InDelta(t, 0.004626, st.Position.Longitude, 1e-5)
	assert.InDelta(t, 0.0, st.Position.Latitude, 1e-9)
	assert.Equal(t, 3000.0, st.Position.Altitude)
}

func TestExtrapolationIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxExtrapolation = 5 * time.Second
	s := NewStore(cfg)

	o := sample(0, 45, 7, 1000)
	o.GroundSpeed = 250
	o.GroundTrack = ptr(45.0)
	o.VerticalRate = ptr(5.0)
	s.AddObservation("a", o, Metadata{})

	at5, _ := s.Peek("a", at(5))
	for _, sec := range []float64{6, 30, 600} {
		st, ok := s.Peek("a", at(sec))
		require.True(t, ok)
		assert.Equal(t, at5.Position, st.Position, "t=%v", sec)
	}
	assert.InDelta(t, 1025.0, at5.Position.Altitude, 1e-9)
}

func TestExtrapolationToleratesBadNumbers(t *testing.T) {
	s := NewStore(DefaultConfig())
	o := sample(0, 1, 1, 100)
	o.GroundSpeed = -20
	o.GroundTrack = ptr(90.0)
	s.AddObservation("a", o, Metadata{})

	st, ok := s.Peek("a", at(5))
	require.True(t, ok)
	assert.Equal(t, o.Position, st.Position)
}

func TestPassThroughBeforeOldest(t *testing.T) {
	s := NewStore(DefaultConfig())
	o := sample(0, 51.5, -0.1, 500)
	o.DisplayDelay = 5 * time.Second
	o.Heading = 270
	s.AddObservation("a", o, Metadata{})

	frame := s.Advance(at(1))
	st, ok := frame["a"]
	require.True(t, ok)
	assert.Equal(t, o.Position, st.Position)
	assert.Equal(t, 270.0, st.Heading)
	assert.False(t, st.Extrapolating)
	assert.True(t, st.DisplayTime.Equal(at(-4)))
	assert.Equal(t, 5*time.Second, st.DisplayDelay)
}

func TestDisplayDelayFromNewestSample(t *testing.T) {
	s := NewStore(DefaultConfig())
	a := sample(0, 0, 0, 0)
	a.DisplayDelay = time.Second
	b := sample(10, 0.001, 0, 0)
	b.DisplayDelay = 3 * time.Second
	s.AddObservation("a", a, Metadata{})
	s.AddObservation("a", b, Metadata{})

	st, ok := s.Peek("a", at(8))
	require.True(t, ok)
	assert.True(t, st.DisplayTime.Equal(at(5)))
	assert.Equal(t, 3*time.Second, st.DisplayDelay)
}

func TestIngestionThrottle(t *testing.T) {
	tr := &recordingTracer{}
	s := NewStore(DefaultConfig(), WithTracer(tr))

	a := sample(0, 0, 0, 0)
	require.True(t, s.AddObservation("a", a, Metadata{Callsign: "OLD"}))

	b := sample(0.1, 1, 1, 1)
	b.Source = "mlat"
	assert.False(t, s.AddObservation("a", b, Metadata{Callsign: "NEW"}))

	tl, ok := s.Timeline("a")
	require.True(t, ok)
	assert.Equal(t, 1, tl.Len())
	assert.Equal(t, "NEW", tl.Metadata.Callsign)
	assert.Equal(t, "mlat", tl.LastSource)
	assert.True(t, tl.LastReceivedAt.Equal(at(0.1)))

	// Arrives late but describes an older instant.
	c := sample(-5, 2, 2, 2)
	c.ReceivedAt = at(2)
	assert.False(t, s.AddObservation("a", c, Metadata{Callsign: "NEWER"}))

	assert.Equal(t, []DropReason{DropThrottled, DropNotNewer}, tr.dropped)
	assert.Equal(t, 1, tr.added)

	tl, _ = s.Timeline("a")
	assert.Equal(t, "NEWER", tl.Metadata.Callsign)
}

func TestDuplicateSampleIsMetadataOnly(t *testing.T) {
	s := NewStore(DefaultConfig())
	a := sample(0, 0, 0, 0)
	s.AddObservation("a", a, Metadata{})

	dup := a
	dup.ReceivedAt = at(1)
	assert.False(t, s.AddObservation("a", dup, Metadata{Squawk: "7000"}))

	tl, _ := s.Timeline("a")
	assert.Equal(t, 1, tl.Len())
	assert.Equal(t, "7000", tl.Metadata.Squawk)
}

func TestCapacityEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 3
	s := NewStore(cfg)

	for i := 0; i < 6; i++ {
		s.AddObservation("a", sample(float64(i), float64(i), 0, 0), Metadata{})
	}

	tl, ok := s.Timeline("a")
	require.True(t, ok)
	obs := tl.Observations()
	require.Len(t, obs, 3)
	assert.Equal(t, 3.0, obs[0].Position.Latitude)
	assert.Equal(t, 5.0, obs[2].Position.Latitude)
}

func TestAddObservationsBatch(t *testing.T) {
	s := NewStore(DefaultConfig())
	kept := s.AddObservations([]Update{
		{ID: "a", Observation: sample(0, 0, 0, 0)},
		{ID: "b", Observation: sample(0, 1, 1, 0)},
		{ID: "a", Observation: sample(0.05, 0, 0, 0)},
		{ID: "a", Observation: sample(1, 0, 0, 0)},
	})
	assert.Equal(t, 3, kept)
	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.Equal(t, 2, s.Len())
}

func TestStatus(t *testing.T) {
	s := NewStore(DefaultConfig())
	assert.Equal(t, Status{}, s.Status())

	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{})
	assert.Equal(t, Status{HasObservations: true}, s.Status())

	s.AddObservation("b", sample(0, 0, 0, 0), Metadata{})
	s.AddObservation("b", sample(1, 0, 0, 0), Metadata{})
	assert.Equal(t, Status{HasObservations: true, ReadyToInterpolate: true}, s.Status())
}

func TestRemove(t *testing.T) {
	s := NewStore(DefaultConfig())
	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{})
	s.Advance(at(1))
	require.Contains(t, s.caches.rendered, "a")

	require.NoError(t, s.Remove("a"))
	assert.Equal(t, 0, s.Len())
	assert.NotContains(t, s.caches.rendered, "a")
	assert.NotContains(t, s.caches.heading, "a")

	err := s.Remove("a")
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestPruneRemovesAllCaches(t *testing.T) {
	tr := &recordingTracer{}
	s := NewStore(DefaultConfig(), WithTracer(tr))

	stale := sample(0, 0, 0, 0)
	stale.Heading = 90
	stale.HeadingReliable = true
	s.AddObservation("stale", stale, Metadata{})
	s.AddObservation("stale", sample(5, 0.001, 0, 0), Metadata{})
	s.AddObservation("fresh", sample(50, 1, 1, 0), Metadata{})
	s.AddObservation("fresh", sample(55, 1.001, 1, 0), Metadata{})

	s.Advance(at(3))
	require.Contains(t, s.caches.recon, "stale")
	require.Contains(t, s.caches.rendered, "stale")
	require.Contains(t, s.caches.heading, "stale")

	removed := s.Prune(at(70))
	assert.Equal(t, []string{"stale"}, removed)
	assert.Equal(t, []string{"stale"}, tr.pruned)

	_, ok := s.Timeline("stale")
	assert.False(t, ok)
	assert.NotContains(t, s.caches.recon, "stale")
	assert.NotContains(t, s.caches.rendered, "stale")
	assert.NotContains(t, s.caches.heading, "stale")

	_, ok = s.Timeline("fresh")
	assert.True(t, ok)
}

func TestRunPrunerStopsOnCancel(t *testing.T) {
	s := NewStore(DefaultConfig())
	s.AddObservation("a", sample(0, 0, 0, 0), Metadata{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunPruner(ctx, 5*time.Millisecond, func() time.Time { return at(3600) })
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPruner did not return after cancel")
	}
}

func TestLoadHistory(t *testing.T) {
	s := NewStore(DefaultConfig())
	s.AddObservation("old", sample(0, 0, 0, 0), Metadata{})

	mk := func(sec, lat float64) Observation {
		o := sample(sec, lat, 0, 0)
		o.ReceivedAt = at(sec + 30)
		o.DisplayDelay = 7 * time.Second
		return o
	}
	kept := s.LoadHistory([]Update{
		{ID: "a", Observation: mk(20, 2)},
		{ID: "a", Observation: mk(0, 0)},
		{ID: "a", Observation: mk(10, 1)},
	})
	assert.Equal(t, 3, kept)
	assert.Equal(t, []string{"a"}, s.IDs())

	tl, _ := s.Timeline("a")
	for _, o := range tl.Observations() {
		assert.Zero(t, o.DisplayDelay)
		assert.True(t, o.ReceivedAt.Equal(o.ObservedAt))
	}

	st, ok := s.Peek("a", at(15))
	require.True(t, ok)
	assert.True(t, st.DisplayTime.Equal(at(15)))
	assert.InDelta(t, 1.5, st.Position.Latitude, 1e-9)
}
