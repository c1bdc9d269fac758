package routing

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/server/routing/cache"
	"github.com/hrygo/agentroute/server/routing/graph"
	"github.com/hrygo/agentroute/server/routing/probe"
)

// Config holds the tuning for the whole decision pipeline.
type Config struct {
	// ConfidenceThreshold is the static-match margin at or above which the
	// pipeline stops early. Values below it trigger the deep signals.
	ConfidenceThreshold float64

	// RouteTimeout bounds one full routing call. On expiry the pipeline
	// falls back to the best static result instead of failing.
	RouteTimeout time.Duration

	// DefaultWeights are the combiner weights when the request does not
	// override them.
	DefaultWeights Weights

	DefaultTopK int

	Cache cache.Config
	Probe probe.Config
	Graph graph.Config
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		RouteTimeout:        5 * time.Second,
		DefaultWeights:      Weights{Graph: 0.5, KBA: 0.5},
		DefaultTopK:         5,
		Cache:               cache.DefaultConfig(),
		Probe:               probe.DefaultConfig(),
		Graph:               graph.DefaultConfig(),
	}
}

// Validate checks the cross-stage orderings the pipeline depends on.
func (c Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return errors.New("confidence threshold must be in (0, 1]")
	}
	if c.RouteTimeout <= 0 {
		return errors.New("route timeout must be positive")
	}
	if c.Probe.Timeout >= c.RouteTimeout {
		return errors.New("probe timeout must be below the route timeout")
	}
	if c.DefaultWeights.Graph+c.DefaultWeights.KBA <= 0 {
		return errors.New("combiner weights must sum to a positive value")
	}
	if c.DefaultTopK <= 0 {
		return errors.New("default top k must be positive")
	}
	if err := c.Cache.Validate(); err != nil {
		return errors.Wrap(err, "cache config")
	}
	if err := c.Graph.Validate(); err != nil {
		return errors.Wrap(err, "graph config")
	}
	return nil
}
