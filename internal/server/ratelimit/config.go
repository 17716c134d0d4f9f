package ratelimit

import (
	"strings"
	"time"
)

// DefaultPerMinute is the request budget for endpoints without their own limit
const DefaultPerMinute = 60

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig builds a configuration allowing perMinute requests per client on
// ordinary endpoints, with stricter limits on the endpoints that place calls.
func NewConfig(enabled bool, perMinute int) *Config {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	return &Config{
		Enabled:         enabled,
		DefaultLimit:    perMinute,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: operations that dial out or call the language model
		{Path: "/calls/bulk", Method: "POST", Limit: 5, Window: time.Hour, Burst: 2},
		{Path: "/calls", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},
		{Path: "/commands", Method: "POST", Limit: 30, Window: time.Minute, Burst: 5},

		// Tier 2: writes
		{Path: "/numbers/import", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
		{Path: "/numbers", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/numbers", Method: "DELETE", Limit: 10, Window: time.Minute, Burst: 2},
		{Path: "/numbers/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},

		// Reads use the default limit; health and metrics are unlimited
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a set.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
