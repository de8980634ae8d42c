package coordinates

import "math"

// LookAngle is the direction from an observer to a target.
type LookAngle struct {
	// Elevation above the observer's horizon in degrees (-90 to +90)
	Elevation float64

	// Azimuth in degrees clockwise from true north (0-360)
	Azimuth float64

	// RangeNM is the great-circle surface distance in nautical miles
	RangeNM float64
}

// Look returns where target appears from observer.
//
// Elevation is atan2 of the altitude difference over the surface distance.
// Refraction and curvature drop are ignored.
func Look(observer, target Geographic) LookAngle {
	surfaceM := DistanceMeters(observer, target)
	return LookAngle{
		Elevation: math.Atan2(target.Altitude-observer.Altitude, surfaceM) * RadiansToDegrees,
		Azimuth:   Bearing(observer, target),
		RangeNM:   surfaceM / 1852.0,
	}
}
