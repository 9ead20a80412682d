package model

import "time"

// Config holds the complete runtime configuration
type Config struct {
	HTTP   HTTPConfig   `yaml:"http" json:"http"`
	Rate   RateConfig   `yaml:"rate" json:"rate"`
	Cache  CacheConfig  `yaml:"cache" json:"cache"`
	Output OutputConfig `yaml:"output" json:"output"`
}

// HTTPConfig controls the geocoding provider HTTP client
type HTTPConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// RateConfig controls pacing of outbound geocoding calls
type RateConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// CacheConfig controls where cache and output files live
type CacheConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// OutputConfig controls operator-facing output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			BaseURL:   "https://maps.googleapis.com/maps/api",
			Timeout:   10 * time.Second,
			UserAgent: "Geotally/0.1 (+https://github.com/voyagekit/geotally)",
		},
		Rate: RateConfig{
			// 10 req/s keeps ~100ms between provider calls
			RequestsPerSecond: 10,
			Burst:             1,
		},
		Cache: CacheConfig{
			Dir: "cache",
		},
		Output: OutputConfig{
			Verbose: false,
		},
	}
}
