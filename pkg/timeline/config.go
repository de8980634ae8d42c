package timeline

import "time"

// Config holds the engine's tuning parameters.
type Config struct {
	// Capacity is the number of observations retained per aircraft
	Capacity int

	// MinSampleInterval is the minimum receipt spacing between two kept
	// position samples. Closer samples only refresh metadata.
	MinSampleInterval time.Duration

	// MaxExtrapolation bounds how far past the newest sample a position is
	// projected. Beyond it the position freezes.
	MaxExtrapolation time.Duration

	// StaleTimeout is how long an aircraft may go without any update before
	// the pruning sweep removes it
	StaleTimeout time.Duration

	// VerticalRateThreshold (m/s) scales the altitude easing blend; a change
	// in segment climb rate of three thresholds gives full easing
	VerticalRateThreshold float64

	// MinHeadingDisplacement is the smallest position change (meters) that
	// gives a bearing stable enough to stand in for a reliable heading
	MinHeadingDisplacement float64
}

// DefaultConfig returns the tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Capacity:               20,
		MinSampleInterval:      250 * time.Millisecond,
		MaxExtrapolation:       10 * time.Second,
		StaleTimeout:           60 * time.Second,
		VerticalRateThreshold:  2.5, // ~500 ft/min
		MinHeadingDisplacement: 25,
	}
}

// withDefaults fills zero or negative fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity < 2 {
		c.Capacity = d.Capacity
	}
	if c.MinSampleInterval < 0 {
		c.MinSampleInterval = 0
	}
	if c.MaxExtrapolation <= 0 {
		c.MaxExtrapolation = d.MaxExtrapolation
	}
	if c.StaleTimeout <= 0 {
		c.StaleTimeout = d.StaleTimeout
	}
	if c.VerticalRateThreshold <= 0 {
		c.VerticalRateThreshold = d.VerticalRateThreshold
	}
	if c.MinHeadingDisplacement <= 0 {
		c.MinHeadingDisplacement = d.MinHeadingDisplacement
	}
	return c
}
