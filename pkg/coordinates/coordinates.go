package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// EarthRadiusMeters is EarthRadiusKm in meters
	EarthRadiusMeters = EarthRadiusKm * 1000.0

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// MetersToFeet converts meters to feet
	MetersToFeet = 3.28084

	// KnotsToMetersPerSecond converts knots to meters per second
	KnotsToMetersPerSecond = 1852.0 / 3600.0

	// FeetPerMinuteToMetersPerSecond converts ft/min to m/s
	FeetPerMinuteToMetersPerSecond = FeetToMeters / 60.0
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64 `json:"lat" msgpack:"lat"`

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64 `json:"lon" msgpack:"lon"`

	// Altitude in meters above mean sea level (MSL)
	Altitude float64 `json:"alt" msgpack:"alt"`
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad, altMeters).
func (g Geographic) ToRadians() (float64, float64, float64) {
	return g.Latitude * DegreesToRadians,
		g.Longitude * DegreesToRadians,
		g.Altitude
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// NormalizeLongitude wraps a longitude into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if lon > 180.0 || lon < -180.0 {
		lon = math.Mod(lon+180.0, 360.0)
		if lon < 0 {
			lon += 360.0
		}
		lon -= 180.0
	}
	return lon
}

// AngleDifference returns the signed shortest rotation from one angle to
// another, in degrees within [-180, 180).
// AngleDifference(350, 10) is +20, AngleDifference(10, 350) is -20.
func AngleDifference(from, to float64) float64 {
	d := math.Mod(to-from, 360.0)
	if d < -180.0 {
		d += 360.0
	} else if d >= 180.0 {
		d -= 360.0
	}
	return d
}

// InterpolateHeading blends two headings along the shortest arc.
// fraction=0 returns from, fraction=1 returns to; the result is in [0, 360).
func InterpolateHeading(from, to, fraction float64) float64 {
	return NormalizeAzimuth(from + AngleDifference(from, to)*fraction)
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * RadiansToDegrees

	// Normalize to 0-360
	if bearing < 0 {
		bearing += 360
	}

	return bearing
}

// DistanceMeters calculates the great-circle distance between two points
// using the Haversine formula. Altitude is ignored.
func DistanceMeters(from, to Geographic) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lon1Rad := from.Longitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	lon2Rad := to.Longitude * DegreesToRadians

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Returns distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	// 1 nm = 1852 m
	return DistanceMeters(from, to) / 1852.0
}

// Destination returns the point reached by travelling distanceMeters from
// start along the great circle with the given initial bearing. Altitude is
// carried over unchanged.
//
// lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(brg))
// lon2 = lon1 + atan2(sin(brg)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
func Destination(start Geographic, bearingDeg, distanceMeters float64) Geographic {
	if distanceMeters == 0 {
		return start
	}

	latRad := start.Latitude * DegreesToRadians
	lonRad := start.Longitude * DegreesToRadians
	brgRad := bearingDeg * DegreesToRadians

	// Angular distance (distance / Earth radius)
	d := distanceMeters / EarthRadiusMeters

	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(d) +
			math.Cos(latRad)*math.Sin(d)*math.Cos(brgRad),
	)
	newLonRad := lonRad + math.Atan2(
		math.Sin(brgRad)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return Geographic{
		Latitude:  newLatRad * RadiansToDegrees,
		Longitude: NormalizeLongitude(newLonRad * RadiansToDegrees),
		Altitude:  start.Altitude,
	}
}

// Lerp interpolates latitude and longitude linearly between two points.
// Longitude takes the short way across the antimeridian. Altitude is
// interpolated linearly as well; callers that ease altitude overwrite it.
func Lerp(from, to Geographic, fraction float64) Geographic {
	dLon := to.Longitude - from.Longitude
	if dLon > 180.0 {
		dLon -= 360.0
	} else if dLon < -180.0 {
		dLon += 360.0
	}
	return Geographic{
		Latitude:  from.Latitude + (to.Latitude-from.Latitude)*fraction,
		Longitude: NormalizeLongitude(from.Longitude + dLon*fraction),
		Altitude:  from.Altitude + (to.Altitude-from.Altitude)*fraction,
	}
}
