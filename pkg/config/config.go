package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/unklstewy/skytrail/pkg/timeline"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	ADSB     ADSBConfig     `json:"adsb"`
	Observer ObserverConfig `json:"observer"`
	Timeline TimelineConfig `json:"timeline"`
	Logging  LoggingConfig  `json:"logging"`
	Auth     AuthConfig     `json:"auth"`
	History  HistoryConfig  `json:"history"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file"`

	// AllowedOrigins lists the CORS origins allowed to call the API
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled turns on recording of observations to PostgreSQL
	Enabled bool `json:"enabled"`

	// Driver is the database driver (only postgres is supported)
	Driver string `json:"driver"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`

	// RetentionHours is how long recorded observations are kept
	RetentionHours int `json:"retention_hours"`
}

// CollectionRegion represents a geographic region for aircraft data collection.
// The collector will fetch aircraft data from all enabled regions.
type CollectionRegion struct {
	// Name is a friendly identifier for this region
	Name string `json:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// RadiusNM is the collection radius in nautical miles
	RadiusNM float64 `json:"radius_nm"`

	// Enabled determines if this region should be actively collected
	Enabled bool `json:"enabled"`
}

// ADSBConfig contains ADS-B data source configuration.
type ADSBConfig struct {
	// Sources is a list of configured ADS-B data sources.
	// Every enabled source is polled; their samples merge per aircraft.
	Sources []ADSBSource `json:"sources"`

	// SearchRadiusNM is the default search radius in nautical miles.
	// Used for the default region and the default TUI zoom.
	SearchRadiusNM float64 `json:"search_radius_nm"`

	// CollectionRegions defines multiple geographic regions to collect aircraft from.
	// If empty, a single region at the observer location is used.
	CollectionRegions []CollectionRegion `json:"collection_regions"`
}

// ADSBSource represents a single ADS-B data source configuration.
type ADSBSource struct {
	// Name is a friendly name for this source; it becomes the sample source tag
	Name string `json:"name"`

	// Type is the source type: "airplanes.live"
	Type string `json:"type"`

	// Enabled determines if this source should be used
	Enabled bool `json:"enabled"`

	// BaseURL is the API base URL for online sources
	BaseURL string `json:"base_url"`

	// APIKey is the API key for services that require authentication
	APIKey string `json:"api_key,omitempty"`

	// RateLimitSeconds is the minimum time between API calls in seconds
	// 0 = no rate limit, >0 = enforce minimum delay between calls
	// airplanes.live: recommend 1 second to avoid 429 errors
	RateLimitSeconds float64 `json:"rate_limit_seconds"`

	// UpdateIntervalSeconds is how often this source is polled
	UpdateIntervalSeconds float64 `json:"update_interval_seconds"`

	// DisplayDelaySeconds is how far behind real time aircraft from this
	// source are drawn. It should be at least one update interval so there
	// is always a newer sample to interpolate towards.
	DisplayDelaySeconds float64 `json:"display_delay_seconds"`
}

// UpdateInterval returns the polling interval, defaulting to 2 seconds.
func (s ADSBSource) UpdateInterval() time.Duration {
	if s.UpdateIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return seconds(s.UpdateIntervalSeconds)
}

// DisplayDelay returns the display delay stamped on this source's samples.
func (s ADSBSource) DisplayDelay() time.Duration {
	return seconds(s.DisplayDelaySeconds)
}

// ObserverConfig contains the observer's geographic location.
// It is the centre of the radar scope and of the default collection region.
type ObserverConfig struct {
	// Name is a friendly identifier for this observer location
	Name string `json:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// Elevation in meters above sea level
	Elevation float64 `json:"elevation"`

	// TimeZone is the IANA timezone name (e.g., "America/New_York")
	TimeZone string `json:"timezone"`
}

// TimelineConfig tunes the interpolation engine.
type TimelineConfig struct {
	// Capacity is the number of samples retained per aircraft
	Capacity int `json:"capacity"`

	// MinSampleIntervalMS drops position samples received closer together
	MinSampleIntervalMS int `json:"min_sample_interval_ms"`

	// MaxExtrapolationSeconds bounds dead reckoning past the newest sample
	MaxExtrapolationSeconds float64 `json:"max_extrapolation_seconds"`

	// StaleTimeoutSeconds is how long an aircraft survives without updates
	StaleTimeoutSeconds float64 `json:"stale_timeout_seconds"`

	// PruneIntervalSeconds is how often stale aircraft are swept
	PruneIntervalSeconds float64 `json:"prune_interval_seconds"`

	// VerticalRateThreshold (m/s) scales altitude easing
	VerticalRateThreshold float64 `json:"vertical_rate_threshold"`

	// MinHeadingDisplacementMeters is the movement needed to derive a heading
	MinHeadingDisplacementMeters float64 `json:"min_heading_displacement_meters"`

	// TickHz is the frame rate for Advance in servers and viewers
	TickHz float64 `json:"tick_hz"`

	// TraceIDs lists aircraft whose engine events are logged at debug level
	TraceIDs []string `json:"trace_ids,omitempty"`
}

// EngineConfig converts the settings to a timeline.Config.
func (c TimelineConfig) EngineConfig() timeline.Config {
	return timeline.Config{
		Capacity:               c.Capacity,
		MinSampleInterval:      time.Duration(c.MinSampleIntervalMS) * time.Millisecond,
		MaxExtrapolation:       seconds(c.MaxExtrapolationSeconds),
		StaleTimeout:           seconds(c.StaleTimeoutSeconds),
		VerticalRateThreshold:  c.VerticalRateThreshold,
		MinHeadingDisplacement: c.MinHeadingDisplacementMeters,
	}
}

// PruneInterval returns the sweep interval, defaulting to 5 seconds.
func (c TimelineConfig) PruneInterval() time.Duration {
	if c.PruneIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return seconds(c.PruneIntervalSeconds)
}

// TickInterval returns the time between frames, defaulting to 10 Hz.
func (c TimelineConfig) TickInterval() time.Duration {
	if c.TickHz <= 0 {
		return 100 * time.Millisecond
	}
	return seconds(1 / c.TickHz)
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level"`

	// Dir is the directory for rotated log files; empty logs to stderr only
	Dir string `json:"dir"`

	// MaxSizeMB is the size at which a log file is rotated
	MaxSizeMB int `json:"max_size_mb"`

	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int `json:"max_age_days"`

	// MaxBackups is how many rotated files are kept
	MaxBackups int `json:"max_backups"`

	// Stderr also writes logs to standard error
	Stderr bool `json:"stderr"`
}

// AuthConfig contains API authentication settings.
type AuthConfig struct {
	// JWTSecret signs API tokens (should be loaded from environment)
	JWTSecret string `json:"jwt_secret"`

	// TokenTTLMinutes is how long an issued token is valid
	TokenTTLMinutes int `json:"token_ttl_minutes"`

	// Users are the accounts allowed to log in
	Users []UserConfig `json:"users"`
}

// UserConfig is one API account.
type UserConfig struct {
	Username string `json:"username"`

	// PasswordHash is a bcrypt hash; see auth.HashPassword
	PasswordHash string `json:"password_hash"`

	// Role is "admin" or "viewer"
	Role string `json:"role"`
}

// TokenTTL returns the token lifetime, defaulting to 24 hours.
func (c AuthConfig) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// HistoryConfig controls recording of observations to archive files.
type HistoryConfig struct {
	// Enabled turns on recording
	Enabled bool `json:"enabled"`

	// Dir is where archive files are written, one per collector run
	Dir string `json:"dir"`

	// LookbehindSeconds and LookaheadSeconds size the replay window
	LookbehindSeconds float64 `json:"lookbehind_seconds"`
	LookaheadSeconds  float64 `json:"lookahead_seconds"`
}

// ReplayWindow returns how much of a recording around the playback time is
// loaded at once. Zero values leave the choice to the player.
func (c HistoryConfig) ReplayWindow() (lookbehind, lookahead time.Duration) {
	return seconds(c.LookbehindSeconds), seconds(c.LookaheadSeconds)
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON on top of the defaults so omitted sections keep them
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON with indentation
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	engine := timeline.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			TLSEnabled:     false,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Enabled:        false,
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			Database:       "skytrail",
			Username:       "skytrail",
			SSLMode:        "disable",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
			RetentionHours: 24,
		},
		ADSB: ADSBConfig{
			Sources: []ADSBSource{
				{
					Name:                  "airplanes.live",
					Type:                  "airplanes.live",
					Enabled:               true,
					BaseURL:               "https://api.airplanes.live/v2",
					RateLimitSeconds:      1.0,
					UpdateIntervalSeconds: 2.0,
					DisplayDelaySeconds:   3.0,
				},
			},
			SearchRadiusNM: 50.0,
		},
		Observer: ObserverConfig{
			Name:      "Primary Observer",
			Latitude:  0.0,
			Longitude: 0.0,
			Elevation: 0.0,
			TimeZone:  "UTC",
		},
		Timeline: TimelineConfig{
			Capacity:                     engine.Capacity,
			MinSampleIntervalMS:          int(engine.MinSampleInterval / time.Millisecond),
			MaxExtrapolationSeconds:      engine.MaxExtrapolation.Seconds(),
			StaleTimeoutSeconds:          engine.StaleTimeout.Seconds(),
			PruneIntervalSeconds:         5,
			VerticalRateThreshold:        engine.VerticalRateThreshold,
			MinHeadingDisplacementMeters: engine.MinHeadingDisplacement,
			TickHz:                       10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  64,
			MaxAgeDays: 14,
			MaxBackups: 3,
			Stderr:     true,
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 24 * 60,
		},
		History: HistoryConfig{
			Enabled:           false,
			Dir:               "history",
			LookbehindSeconds: 60,
			LookaheadSeconds:  60,
		},
	}
}

// GetCollectionRegions returns the effective collection regions.
// If CollectionRegions is empty, a single region around the observer
// location with SearchRadiusNM is returned.
func (cfg *ADSBConfig) GetCollectionRegions(observer ObserverConfig) []CollectionRegion {
	if len(cfg.CollectionRegions) > 0 {
		return cfg.CollectionRegions
	}

	return []CollectionRegion{
		{
			Name:      observer.Name + " Region",
			Latitude:  observer.Latitude,
			Longitude: observer.Longitude,
			RadiusNM:  cfg.SearchRadiusNM,
			Enabled:   true,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("SKYTRAIL_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("SKYTRAIL_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if secret := os.Getenv("SKYTRAIL_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if level := os.Getenv("SKYTRAIL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	// Override ADS-B source API keys if provided
	if apiKey := os.Getenv("SKYTRAIL_ADSB_API_KEY"); apiKey != "" {
		for i := range c.ADSB.Sources {
			c.ADSB.Sources[i].APIKey = apiKey
		}
	}
	if delay := os.Getenv("SKYTRAIL_DISPLAY_DELAY"); delay != "" {
		if v, err := strconv.ParseFloat(delay, 64); err == nil && v >= 0 {
			for i := range c.ADSB.Sources {
				c.ADSB.Sources[i].DisplayDelaySeconds = v
			}
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
