package timeline

import (
	"sort"
	"time"

	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// Observation is one timestamped position report for an aircraft.
// Observations are values; once stored in a timeline they are never modified.
type Observation struct {
	// Position is latitude/longitude in degrees and altitude in meters MSL
	Position coordinates.Geographic `json:"position" msgpack:"pos"`

	// Heading is the nose direction in degrees (0-360)
	Heading float64 `json:"heading" msgpack:"hdg"`

	// HeadingReliable is set when the source reported a true heading rather
	// than something derived or defaulted
	HeadingReliable bool `json:"heading_reliable" msgpack:"hdg_ok"`

	// GroundSpeed in knots
	GroundSpeed float64 `json:"ground_speed" msgpack:"gs"`

	// GroundTrack is the direction of travel over ground in degrees, if known
	GroundTrack *float64 `json:"ground_track,omitempty" msgpack:"trk,omitempty"`

	// OnGround is the reported air/ground state, if known
	OnGround *bool `json:"on_ground,omitempty" msgpack:"gnd,omitempty"`

	// Roll in degrees, positive right wing down, if known
	Roll *float64 `json:"roll,omitempty" msgpack:"roll,omitempty"`

	// VerticalRate in meters per second (positive = climbing), if reported
	VerticalRate *float64 `json:"vertical_rate,omitempty" msgpack:"vr,omitempty"`

	// ObservedAt is when the measurement was taken
	ObservedAt time.Time `json:"observed_at" msgpack:"t_obs"`

	// ReceivedAt is when the measurement arrived locally
	ReceivedAt time.Time `json:"received_at" msgpack:"t_rx"`

	// Source identifies the feed that produced the sample
	Source string `json:"source" msgpack:"src"`

	// DisplayDelay is the rendering lag chosen by the source adapter when
	// the sample was created. It is never recomputed afterwards.
	DisplayDelay time.Duration `json:"display_delay" msgpack:"delay"`
}

// Metadata holds the non-positional identity and flight plan fields of an
// aircraft. It is replaced as a whole on every update.
type Metadata struct {
	Callsign     string `json:"callsign,omitempty" msgpack:"cs,omitempty"`
	Registration string `json:"registration,omitempty" msgpack:"reg,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty" msgpack:"type,omitempty"`
	Category     string `json:"category,omitempty" msgpack:"cat,omitempty"`
	Squawk       string `json:"squawk,omitempty" msgpack:"sq,omitempty"`
	Origin       string `json:"origin,omitempty" msgpack:"orig,omitempty"`
	Destination  string `json:"destination,omitempty" msgpack:"dest,omitempty"`
}

// Update is one ingestion request: an observation plus the metadata that
// accompanied it.
type Update struct {
	ID          string      `json:"id" msgpack:"id"`
	Observation Observation `json:"observation" msgpack:"obs"`
	Metadata    Metadata    `json:"metadata" msgpack:"meta"`
}

// DisplayState is what a renderer needs to draw one aircraft at one instant.
type DisplayState struct {
	ID string `json:"id"`

	// Position is the interpolated or extrapolated location
	Position coordinates.Geographic `json:"position"`

	// Heading is the displayed nose direction; a circular blend of the raw
	// sample headings, even when those were not flagged reliable
	Heading float64 `json:"heading"`

	// ReliableHeading is the best trustworthy heading currently known
	ReliableHeading float64 `json:"reliable_heading"`

	GroundSpeed  float64  `json:"ground_speed"`
	GroundTrack  *float64 `json:"ground_track,omitempty"`
	OnGround     *bool    `json:"on_ground,omitempty"`
	Roll         *float64 `json:"roll,omitempty"`
	VerticalRate *float64 `json:"vertical_rate,omitempty"`

	Metadata Metadata `json:"metadata"`
	Source   string   `json:"source"`

	// DisplayDelay is the delay of the newest sample, which is the one in effect
	DisplayDelay time.Duration `json:"display_delay"`

	// Extrapolating is set when the display time is past the newest sample
	Extrapolating bool `json:"extrapolating"`

	// Age is how long ago the newest sample was received
	Age time.Duration `json:"age"`

	ObservationCount int       `json:"observation_count"`
	DisplayTime      time.Time `json:"display_time"`
}

// Frame is the result of one Advance call, keyed by aircraft id.
type Frame map[string]DisplayState

// Sorted returns the frame's states ordered by id.
func (f Frame) Sorted() []DisplayState {
	states := make([]DisplayState, 0, len(f))
	for _, st := range f {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}

// Status summarizes whether there is anything to draw yet.
type Status struct {
	// HasObservations is set once any aircraft has at least one sample
	HasObservations bool `json:"has_observations"`

	// ReadyToInterpolate is set once any aircraft has at least two samples
	ReadyToInterpolate bool `json:"ready_to_interpolate"`
}
