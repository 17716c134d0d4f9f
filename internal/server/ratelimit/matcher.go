package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited routes are probed by load balancers and scrapers
var unlimited = map[string]bool{
	http.MethodGet + " /health":  true,
	http.MethodGet + " /metrics": true,
}

// MatchEndpoint returns the rule for method and path, or nil when none applies.
// Unlimited routes get an empty rule. An exact path wins; otherwise rules
// whose path ends in "/" match by prefix and the longest prefix wins, so
// "DELETE /numbers/" covers "DELETE /numbers/{number}".
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if unlimited[method+" "+path] {
		return &EndpointConfig{}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) &&
			(best == nil || len(c.Path) > len(best.Path)) {
			best = c
		}
	}
	return best
}
