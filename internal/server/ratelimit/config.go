package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string  // Endpoint path pattern (supports prefix matching)
	Method string  // HTTP method (GET, POST, etc.)
	RPS    float64 // Sustained requests per second, 0 means unlimited
	Burst  int     // Burst capacity (defaults to 1 if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultRPS      float64
	DefaultBurst    int
	CleanupInterval time.Duration
	// IdleTTL evicts limiters not used for this long
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig limits the optimize endpoints to rps with the given burst and
// gives read endpoints ten times the budget. rps <= 0 disables limiting.
func NewConfig(rps float64, burst int) *Config {
	if rps <= 0 {
		return &Config{Enabled: false}
	}
	if burst < 1 {
		burst = 1
	}
	return &Config{
		Enabled:         true,
		DefaultRPS:      rps * 10,
		DefaultBurst:    burst * 10,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(rps, burst),
	}
}

// DefaultEndpointConfigs returns the limits for the expensive endpoints.
func DefaultEndpointConfigs(rps float64, burst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/optimize", Method: "POST", RPS: rps, Burst: burst},
		{Path: "/optimize/stream", Method: "POST", RPS: rps, Burst: burst},
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a set.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}
	return result
}
