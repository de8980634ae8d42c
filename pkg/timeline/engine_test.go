package timeline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// angleStep is the signed shortest rotation from one heading to another.
func angleStep(from, to float64) float64 {
	return coordinates.AngleDifference(from, to)
}

func TestEaseAltitude(t *testing.T) {
	tests := []struct {
		name  string
		s     float64
		blend float64
		want  float64
	}{
		{"start", 0, 0.7, 0},
		{"end", 1, 0.7, 100},
		{"midpoint is symmetric", 0.5, 0.7, 50},
		{"linear", 0.25, 0, 25},
		{"eased", 0.25, 0.7, 18.4375},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, easeAltitude(0, 100, tt.s, tt.blend), 1e-9)
		})
	}
}

func TestAltitudeBlend(t *testing.T) {
	e := &engine{cfg: DefaultConfig(), tracer: NopTracer{}}

	steady := newTimeline("steady", 10)
	for i, alt := range []float64{1000, 1100, 1200, 1300} {
		steady.obs.push(sample(float64(i*10), 0, 0, alt))
	}
	assert.InDelta(t, 0.0, e.altitudeBlend(steady, 1, 2), 1e-12)

	levelOff := newTimeline("level", 10)
	for i, alt := range []float64{1000, 1100, 1100} {
		levelOff.obs.push(sample(float64(i*10), 0, 0, alt))
	}
	// 10 m/s then 0 m/s against a 2.5 m/s threshold saturates the blend.
	assert.InDelta(t, maxAltitudeBlend, e.altitudeBlend(levelOff, 0, 1), 1e-12)

	gentle := newTimeline("gentle", 10)
	for i, alt := range []float64{1000, 1000, 1030} {
		gentle.obs.push(sample(float64(i*10), 0, 0, alt))
	}
	// 3 m/s change / 7.5
	assert.InDelta(t, 0.4, e.altitudeBlend(gentle, 1, 2), 1e-12)
}

func TestVerticalRate(t *testing.T) {
	a := sample(0, 0, 0, 1000)
	b := sample(20, 0, 0, 1100)
	assert.InDelta(t, 5.0, verticalRate(&a, &b, 0.5), 1e-12)

	b.VerticalRate = ptr(8.0)
	assert.InDelta(t, 8.0, verticalRate(&a, &b, 0.5), 1e-12)

	a.VerticalRate = ptr(4.0)
	assert.InDelta(t, 6.0, verticalRate(&a, &b, 0.5), 1e-12)
}

func TestDeriveHeading(t *testing.T) {
	e := &engine{cfg: DefaultConfig(), tracer: NopTracer{}}

	t.Run("reliable sample", func(t *testing.T) {
		tl := newTimeline("a", 5)
		o := sample(0, 0, 0, 0)
		o.Heading = 405
		o.HeadingReliable = true
		tl.obs.push(o)

		h, ok := e.deriveHeading(tl, 0, nil)
		assert.True(t, ok)
		assert.InDelta(t, 45.0, h, 1e-9)
	})

	t.Run("bearing from movement", func(t *testing.T) {
		tl := newTimeline("a", 5)
		a := sample(0, 0, 0, 0)
		a.Heading = 200
		b := sample(10, 0.001, 0, 0)
		b.Heading = 200
		tl.obs.push(a)
		tl.obs.push(b)

		h, ok := e.deriveHeading(tl, 1, ptr(123.0))
		assert.True(t, ok)
		assert.InDelta(t, 0.0, h, 1e-6)
	})

	t.Run("scan skips short hops", func(t *testing.T) {
		tl := newTimeline("a", 5)
		tl.obs.push(sample(0, 0, 0, 0))
		tl.obs.push(sample(10, 0, 0.001, 0))       // ~111 m east
		tl.obs.push(sample(20, 0.00001, 0.001, 0)) // ~1 m north

		h, ok := e.deriveHeading(tl, 2, nil)
		assert.True(t, ok)
		assert.InDelta(t, 90.0, h, 1e-3)
	})

	t.Run("stationary uses cache", func(t *testing.T) {
		tl := newTimeline("a", 5)
		a := sample(0, 10, 10, 0)
		b := sample(10, 10, 10, 0)
		b.Heading = 270
		tl.obs.push(a)
		tl.obs.push(b)

		h, ok := e.deriveHeading(tl, 1, ptr(90.0))
		assert.False(t, ok)
		assert.Equal(t, 90.0, h)
	})

	t.Run("raw heading as last resort", func(t *testing.T) {
		tl := newTimeline("a", 5)
		o := sample(0, 0, 0, 0)
		o.Heading = -30
		tl.obs.push(o)

		h, ok := e.deriveHeading(tl, 0, nil)
		assert.False(t, ok)
		assert.InDelta(t, 330.0, h, 1e-9)
	})

	t.Run("NaN position is not usable", func(t *testing.T) {
		tl := newTimeline("a", 5)
		tl.obs.push(sample(0, math.NaN(), 0, 0))
		o := sample(10, 0, 0, 0)
		o.Heading = 12
		tl.obs.push(o)

		h, ok := e.deriveHeading(tl, 1, nil)
		assert.False(t, ok)
		assert.Equal(t, 12.0, h)
	})
}

func TestHeadingCacheOnlyFromTrustedSources(t *testing.T) {
	s := NewStore(DefaultConfig())

	a := sample(0, 10, 10, 0)
	a.Heading = 90
	a.HeadingReliable = true
	s.AddObservation("a", a, Metadata{})

	s.Advance(at(1))
	require.Contains(t, s.caches.heading, "a")
	assert.Equal(t, 90.0, s.caches.heading["a"])

	b := sample(5, 10, 10, 0)
	b.Heading = 270
	s.AddObservation("a", b, Metadata{})

	frame := s.Advance(at(2))
	st := frame["a"]
	assert.Equal(t, 90.0, st.ReliableHeading)
	assert.Equal(t, 90.0, s.caches.heading["a"], "fallback heading must not overwrite the cache")

	// The displayed heading still follows the raw samples; a 180 degree
	// swing resolves counter-clockwise.
	assert.InDelta(t, 90.0-0.4*180, st.Heading, 1e-9)
}

func TestConfigDefaults(t *testing.T) {
	c := Config{Capacity: 1, MinSampleInterval: -time.Second}.withDefaults()
	d := DefaultConfig()
	assert.Equal(t, d.Capacity, c.Capacity)
	assert.Zero(t, c.MinSampleInterval)
	assert.Equal(t, d.MaxExtrapolation, c.MaxExtrapolation)
	assert.Equal(t, d.StaleTimeout, c.StaleTimeout)
	assert.Equal(t, d.VerticalRateThreshold, c.VerticalRateThreshold)
	assert.Equal(t, d.MinHeadingDisplacement, c.MinHeadingDisplacement)
}
