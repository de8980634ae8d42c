package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MaxAirplanesLiveRadius is the largest radius /point accepts, in nautical miles.
const MaxAirplanesLiveRadius = 250.0

// AirplanesLiveClient is a DataSource backed by the airplanes.live REST API.
// API Documentation: https://airplanes.live/api-guide/
type AirplanesLiveClient struct {
	baseURL    string
	httpClient *http.Client

	// limiter spaces out API calls; the public API allows one per second
	limiter *rate.Limiter
}

// NewAirplanesLiveClient creates a client for baseURL, normally
// "https://api.airplanes.live/v2". minInterval is the minimum spacing
// between requests; 0 disables limiting.
func NewAirplanesLiveClient(baseURL string, minInterval time.Duration) *AirplanesLiveClient {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &AirplanesLiveClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// GetAircraft returns the positioned aircraft within radiusNM of a point.
// The radius is capped at MaxAirplanesLiveRadius.
func (c *AirplanesLiveClient) GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error) {
	radiusNM = min(radiusNM, MaxAirplanesLiveRadius)

	resp, err := c.fetch(ctx, fmt.Sprintf("/point/%.4f/%.4f/%.0f", centerLat, centerLon, radiusNM))
	if err != nil {
		return nil, err
	}

	base := resp.timestamp()
	aircraft := make([]Aircraft, 0, len(resp.Aircraft))
	for _, ac := range resp.Aircraft {
		if ac.Lat == nil || ac.Lon == nil {
			continue
		}
		aircraft = append(aircraft, ac.toAircraft(base))
	}
	return aircraft, nil
}

// GetAircraftByICAO returns one aircraft by hex address, or nil when it is
// not currently tracked.
func (c *AirplanesLiveClient) GetAircraftByICAO(ctx context.Context, icao string) (*Aircraft, error) {
	resp, err := c.fetch(ctx, "/hex/"+url.PathEscape(strings.ToLower(icao)))
	if err != nil {
		return nil, err
	}
	if len(resp.Aircraft) == 0 {
		return nil, nil
	}
	ac := resp.Aircraft[0].toAircraft(resp.timestamp())
	return &ac, nil
}

func (c *AirplanesLiveClient) fetch(ctx context.Context, path string) (*airplanesLiveResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rateLimitError(resp, time.Now())
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out airplanesLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return &out, nil
}

// Close is a no-op; the client holds no persistent connections.
func (c *AirplanesLiveClient) Close() error {
	return nil
}

type airplanesLiveResponse struct {
	Aircraft []airplanesLiveAircraft `json:"ac"`
	Total    int                     `json:"total"`

	// Now is the server time in milliseconds since the Unix epoch
	Now float64 `json:"now"`
}

// timestamp returns the server time of the response, or the local time if
// the server did not send one. The per-aircraft "seen" ages are relative to it.
func (r *airplanesLiveResponse) timestamp() time.Time {
	if r.Now > 0 {
		return time.UnixMilli(int64(r.Now)).UTC()
	}
	return time.Now().UTC()
}

// airplanesLiveAircraft is one entry of "ac".
// Field documentation: https://airplanes.live/adsb-field-explanations/
type airplanesLiveAircraft struct {
	Hex    string   `json:"hex"`
	Flight *string  `json:"flight"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`

	// Feet, or the string "ground"
	AltBaro any `json:"alt_baro"`
	AltGeom any `json:"alt_geom"`

	Gs          *float64 `json:"gs"`
	Track       *float64 `json:"track"`
	TrueHeading *float64 `json:"true_heading"`
	MagHeading  *float64 `json:"mag_heading"`
	Roll        *float64 `json:"roll"`

	// Feet per minute
	BaroRate *float64 `json:"baro_rate"`
	GeomRate *float64 `json:"geom_rate"`

	Registration *string `json:"r"`
	Type         *string `json:"t"`
	Category     *string `json:"category"`
	Squawk       *string `json:"squawk"`

	// Seconds before the response time that any message, or a position
	// message, was last received
	Seen    *float64 `json:"seen"`
	SeenPos *float64 `json:"seen_pos"`
}

// toAircraft converts the wire record. Geometric altitude and rate are
// preferred over barometric.
func (ac airplanesLiveAircraft) toAircraft(base time.Time) Aircraft {
	out := Aircraft{
		ICAO:         ac.Hex,
		Callsign:     strings.TrimSpace(deref(ac.Flight)),
		Registration: deref(ac.Registration),
		AircraftType: deref(ac.Type),
		Category:     deref(ac.Category),
		Squawk:       deref(ac.Squawk),
		Track:        ac.Track,
		TrueHeading:  ac.TrueHeading,
		MagHeading:   ac.MagHeading,
		Roll:         ac.Roll,
		VerticalRate: firstSet(ac.GeomRate, ac.BaroRate),
		LastSeen:     base,
	}
	if ac.Lat != nil && ac.Lon != nil {
		out.Latitude, out.Longitude = *ac.Lat, *ac.Lon
	}
	if ac.Gs != nil {
		out.GroundSpeed = *ac.Gs
	}

	if ft, ok := altitudeFeet(ac.AltGeom); ok {
		out.Altitude, out.AltitudeKnown = ft, true
	} else if ft, ok := altitudeFeet(ac.AltBaro); ok {
		out.Altitude, out.AltitudeKnown = ft, true
	}
	if s, ok := ac.AltBaro.(string); ok && s == "ground" {
		out.OnGround = true
	}

	if seen := firstSet(ac.SeenPos, ac.Seen); seen != nil {
		out.LastSeen = base.Add(-time.Duration(*seen * float64(time.Second)))
	}
	return out
}

// altitudeFeet decodes a numeric alt_baro/alt_geom value. "ground" says
// nothing about the field elevation, so it is not an altitude.
func altitudeFeet(v any) (float64, bool) {
	alt, ok := v.(float64)
	return alt, ok
}

func firstSet(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
