package coordinates

import (
	"math"
	"testing"
)

// TestLook tests observer-relative look angles
func TestLook(t *testing.T) {
	observer := Geographic{Latitude: 40.0, Longitude: -74.0, Altitude: 100.0}

	tests := []struct {
		name      string
		target    Geographic
		wantElev  float64
		wantAz    float64
		tolerance float64
	}{
		{
			name:      "Aircraft directly north at same altitude",
			target:    Geographic{Latitude: 41.0, Longitude: -74.0, Altitude: 100.0},
			wantElev:  0.0,
			wantAz:    0.0,
			tolerance: 1.0,
		},
		{
			name:      "Aircraft directly east at same altitude",
			target:    Geographic{Latitude: 40.0, Longitude: -73.0, Altitude: 100.0},
			wantElev:  0.0,
			wantAz:    90.0,
			tolerance: 1.0,
		},
		{
			name:      "Aircraft overhead",
			target:    Geographic{Latitude: 40.0, Longitude: -74.0, Altitude: 10100.0},
			wantElev:  90.0,
			tolerance: 0.1,
		},
		{
			name:      "Climb-out 10 km south at 1000 m",
			target:    Geographic{Latitude: 40.0 - 10.0/111.195, Longitude: -74.0, Altitude: 1100.0},
			wantElev:  5.71, // atan(1000/10000)
			wantAz:    180.0,
			tolerance: 0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Look(observer, tt.target)

			if math.Abs(result.Elevation-tt.wantElev) > tt.tolerance {
				t.Errorf("Elevation = %.2f, want %.2f (±%.2f)", result.Elevation, tt.wantElev, tt.tolerance)
			}

			// Azimuth is meaningless straight up
			if result.Elevation < 80.0 {
				if diff := math.Abs(AngleDifference(tt.wantAz, result.Azimuth)); diff > tt.tolerance {
					t.Errorf("Azimuth = %.2f, want %.2f (±%.2f)", result.Azimuth, tt.wantAz, tt.tolerance)
				}
			}
		})
	}
}

// TestLookRange tests that range agrees with DistanceNauticalMiles
func TestLookRange(t *testing.T) {
	from := Geographic{Latitude: 35.0, Longitude: -80.0}
	to := Geographic{Latitude: 35.5, Longitude: -80.5}

	got := Look(from, to).RangeNM
	want := DistanceNauticalMiles(from, to)
	if math.Abs(got-want) > 0.01 {
		t.Errorf("RangeNM = %.3f, want %.3f", got, want)
	}
}
