package adsb

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Aircraft represents an aircraft tracked via ADS-B.
// All position data is in WGS84 coordinate system. Units are those used on
// the wire (feet, knots, feet per minute); Observation converts them.
type Aircraft struct {
	// ICAO is the unique 24-bit ICAO aircraft address (e.g., "A12345")
	ICAO string

	// Callsign is the flight number or aircraft registration
	Callsign string

	// Registration is the tail number, if known
	Registration string

	// AircraftType is the ICAO type designator (e.g., "B738")
	AircraftType string

	// Category is the ADS-B emitter category (e.g., "A3")
	Category string

	// Squawk is the transponder code
	Squawk string

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// Altitude in feet above mean sea level (MSL)
	// Note: Some aircraft report geometric altitude, others barometric
	Altitude float64

	// AltitudeKnown is false when the report carried no numeric altitude,
	// as with an alt_baro of "ground"
	AltitudeKnown bool

	// OnGround is set when the aircraft reported itself on the ground
	OnGround bool

	// GroundSpeed in knots
	GroundSpeed float64

	// Track is the ground track in degrees (0-359), if reported
	// 0 = North, 90 = East, 180 = South, 270 = West
	Track *float64

	// TrueHeading is the nose direction relative to true north, if reported
	TrueHeading *float64

	// MagHeading is the nose direction relative to magnetic north, if reported
	MagHeading *float64

	// Roll in degrees (positive = right wing down), if reported
	Roll *float64

	// VerticalRate in feet per minute (positive = climbing, negative = descending), if reported
	VerticalRate *float64

	// LastSeen is the timestamp of the last position update
	LastSeen time.Time
}

// DataSource is the interface that all ADS-B data providers must implement.
// This abstraction allows switching between online services and local
// receivers.
type DataSource interface {
	// GetAircraft returns all currently tracked aircraft within a given radius.
	// centerLat/centerLon define the search center in decimal degrees.
	// radiusNM is the search radius in nautical miles.
	GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error)

	// GetAircraftByICAO returns a specific aircraft by its ICAO address.
	// Returns nil if the aircraft is not currently tracked.
	GetAircraftByICAO(ctx context.Context, icao string) (*Aircraft, error)

	// Close cleanly shuts down the data source connection.
	Close() error
}

// ID returns the key the aircraft is tracked under: the lower-case ICAO address.
func (a Aircraft) ID() string {
	return strings.ToLower(strings.TrimSpace(a.ICAO))
}

// Observation converts the aircraft report into a timeline update.
//
// The heading is marked reliable only when the aircraft reported a true
// heading. Otherwise the magnetic heading, then the ground track, stand in
// for it unflagged. source and displayDelay are stamped on the sample as-is.
func (a Aircraft) Observation(source string, displayDelay time.Duration, receivedAt time.Time) timeline.Update {
	obs := timeline.Observation{
		Position: coordinates.Geographic{
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
			Altitude:  a.Altitude * coordinates.FeetToMeters,
		},
		GroundSpeed:  a.GroundSpeed,
		GroundTrack:  a.Track,
		Roll:         a.Roll,
		ObservedAt:   a.LastSeen,
		ReceivedAt:   receivedAt,
		Source:       source,
		DisplayDelay: displayDelay,
	}
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = receivedAt
	}

	switch {
	case a.TrueHeading != nil && finite(*a.TrueHeading):
		obs.Heading = coordinates.NormalizeAzimuth(*a.TrueHeading)
		obs.HeadingReliable = true
	case a.MagHeading != nil && finite(*a.MagHeading):
		obs.Heading = coordinates.NormalizeAzimuth(*a.MagHeading)
	case a.Track != nil && finite(*a.Track):
		obs.Heading = coordinates.NormalizeAzimuth(*a.Track)
	}

	onGround := a.OnGround
	obs.OnGround = &onGround

	if a.VerticalRate != nil {
		vr := *a.VerticalRate * coordinates.FeetPerMinuteToMetersPerSecond
		obs.VerticalRate = &vr
	}

	return timeline.Update{
		ID:          a.ID(),
		Observation: obs,
		Metadata: timeline.Metadata{
			Callsign:     strings.TrimSpace(a.Callsign),
			Registration: a.Registration,
			AircraftType: a.AircraftType,
			Category:     a.Category,
			Squawk:       a.Squawk,
		},
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
