package adsb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// fakeSource returns canned aircraft per region name (by latitude).
type fakeSource struct {
	mu       sync.Mutex
	byLat    map[float64][]Aircraft
	failLat  map[float64]bool
	requests int
}

func (f *fakeSource) GetAircraft(ctx context.Context, lat, lon, radius float64) ([]Aircraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	if f.failLat[lat] {
		return nil, errors.New("boom")
	}
	return f.byLat[lat], nil
}

func (f *fakeSource) GetAircraftByICAO(ctx context.Context, icao string) (*Aircraft, error) {
	return nil, nil
}

func (f *fakeSource) Close() error { return nil }

func noRetry() RetryConfig {
	return RetryConfig{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

// TestFeedPollMergesRegions tests that overlapping regions deliver each
// aircraft once with its freshest report.
func TestFeedPollMergesRegions(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{byLat: map[float64][]Aircraft{
		1: {
			{ICAO: "AAA111", Latitude: 1, AltitudeKnown: true, LastSeen: t0},
			{ICAO: "bbb222", Latitude: 1, AltitudeKnown: true, LastSeen: t0},
		},
		2: {
			{ICAO: "aaa111", Latitude: 2, AltitudeKnown: true, LastSeen: t0.Add(time.Second)},
		},
	}}

	var got []timeline.Update
	feed := &Feed{
		Name:         "test",
		Source:       src,
		Regions:      []Region{{Name: "one", Latitude: 1}, {Name: "two", Latitude: 2}},
		DisplayDelay: 2 * time.Second,
		Retry:        noRetry(),
		Sink: SinkFunc(func(u []timeline.Update) int {
			got = append(got, u...)
			return len(u)
		}),
		Now: func() time.Time { return t0.Add(3 * time.Second) },
	}

	stats, err := feed.Poll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.Aircraft != 2 || stats.Kept != 2 {
		t.Errorf("Expected 2 aircraft kept, got %+v", stats)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(got))
	}
	if got[0].ID != "aaa111" || got[0].Observation.Position.Latitude != 2 {
		t.Errorf("Expected freshest report for aaa111, got %+v", got[0])
	}
	for _, u := range got {
		if u.Observation.Source != "test" || u.Observation.DisplayDelay != 2*time.Second {
			t.Errorf("Expected source/delay stamped by the feed, got %s %v", u.Observation.Source, u.Observation.DisplayDelay)
		}
		if !u.Observation.ReceivedAt.Equal(t0.Add(3 * time.Second)) {
			t.Errorf("Expected receive time from the feed clock, got %v", u.Observation.ReceivedAt)
		}
	}
}

// TestFeedPollPartialFailure tests that one failing region does not fail the poll.
func TestFeedPollPartialFailure(t *testing.T) {
	src := &fakeSource{
		byLat:   map[float64][]Aircraft{1: {{ICAO: "abc", AltitudeKnown: true, LastSeen: time.Now()}}},
		failLat: map[float64]bool{2: true},
	}
	store := timeline.NewStore(timeline.DefaultConfig())
	feed := &Feed{
		Name:    "test",
		Source:  src,
		Regions: []Region{{Latitude: 1}, {Latitude: 2}},
		Retry:   noRetry(),
		Sink:    store,
	}

	stats, err := feed.Poll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("Expected 1 region error, got %d", stats.Errors)
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 aircraft in store, got %d", store.Len())
	}
}

// TestFeedPollAllFail tests that a poll with no successful region errors.
func TestFeedPollAllFail(t *testing.T) {
	src := &fakeSource{failLat: map[float64]bool{1: true}}
	feed := &Feed{Name: "test", Source: src, Regions: []Region{{Latitude: 1}}, Retry: noRetry()}

	if _, err := feed.Poll(context.Background()); err == nil {
		t.Error("Expected error when every region fails")
	}
}

// TestFeedCarriesGroundAltitude tests that a report without altitude uses
// the aircraft's last known one, and is skipped when there is none.
func TestFeedCarriesGroundAltitude(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	src := &fakeSource{byLat: map[float64][]Aircraft{
		1: {
			{ICAO: "abc", Altitude: 748, AltitudeKnown: true, LastSeen: t0},
			{ICAO: "def", OnGround: true, LastSeen: t0},
		},
	}}
	var got []timeline.Update
	feed := &Feed{
		Name:    "test",
		Source:  src,
		Regions: []Region{{Latitude: 1}},
		Retry:   noRetry(),
		Sink: SinkFunc(func(u []timeline.Update) int {
			got = u
			return len(u)
		}),
		Now: func() time.Time { return now },
	}

	stats, err := feed.Poll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.NoAltitude != 1 || len(got) != 1 || got[0].ID != "abc" {
		t.Fatalf("Expected def skipped without altitude, got %+v %v", stats, got)
	}

	// abc lands and reports only "ground".
	src.mu.Lock()
	src.byLat[1] = []Aircraft{{ICAO: "abc", OnGround: true, LastSeen: t0.Add(2 * time.Second)}}
	src.mu.Unlock()
	now = t0.Add(2 * time.Second)

	if _, err := feed.Poll(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 update, got %d", len(got))
	}
	want := 748 * coordinates.FeetToMeters
	if alt := got[0].Observation.Position.Altitude; alt != want {
		t.Errorf("Expected carried altitude %f m, got %f", want, alt)
	}
	if og := got[0].Observation.OnGround; og == nil || !*og {
		t.Errorf("Expected on ground, got %v", og)
	}

	// The carried altitude expires.
	now = t0.Add(altitudeMemory + 3*time.Second)
	stats, err = feed.Poll(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.NoAltitude != 1 || stats.Kept != 0 {
		t.Errorf("Expected report skipped once the altitude expired, got %+v", stats)
	}
}

// TestFeedRunStopsOnCancel tests the polling loop.
func TestFeedRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{byLat: map[float64][]Aircraft{}}
	feed := &Feed{Name: "test", Source: src, Regions: []Region{{Latitude: 1}}, Interval: 10 * time.Millisecond, Retry: noRetry()}

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	err := feed.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got: %v", err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.requests < 2 {
		t.Errorf("Expected several polls, got %d", src.requests)
	}
}

// TestTee tests fan-out to several sinks.
func TestTee(t *testing.T) {
	var a, b int
	sink := Tee(
		SinkFunc(func(u []timeline.Update) int { a += len(u); return len(u) }),
		SinkFunc(func(u []timeline.Update) int { b += len(u); return 0 }),
	)
	if n := sink.AddObservations(make([]timeline.Update, 3)); n != 3 {
		t.Errorf("Expected count from the first sink, got %d", n)
	}
	if a != 3 || b != 3 {
		t.Errorf("Expected both sinks to receive 3 updates, got %d and %d", a, b)
	}
}
