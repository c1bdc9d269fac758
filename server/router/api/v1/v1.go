// Package v1 exposes the routing pipeline over HTTP.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/agentroute/internal/observability"
	"github.com/hrygo/agentroute/internal/profile"
	"github.com/hrygo/agentroute/server/routing"
	"github.com/hrygo/agentroute/server/routing/cache"
	"github.com/hrygo/agentroute/server/routing/graph"
)

// maxConcurrentRoutes bounds in-flight routing requests so a burst cannot
// exhaust the probe worker pool.
const maxConcurrentRoutes = 64

// APIV1Service wires the HTTP handlers to the routing pipeline.
type APIV1Service struct {
	profile *profile.Profile
	router  *routing.Router
	cache   *cache.Semantic
	graph   *graph.Provider
	metrics *observability.Metrics
	logger  *slog.Logger

	routeSem *semaphore.Weighted
}

// NewAPIV1Service creates the API service. cache and graph may be nil when
// the corresponding stages are disabled.
func NewAPIV1Service(
	profile *profile.Profile,
	router *routing.Router,
	decisionCache *cache.Semantic,
	graphProvider *graph.Provider,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *APIV1Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &APIV1Service{
		profile:  profile,
		router:   router,
		cache:    decisionCache,
		graph:    graphProvider,
		metrics:  metrics,
		logger:   logger,
		routeSem: semaphore.NewWeighted(maxConcurrentRoutes),
	}
}

// Register mounts all v1 routes.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.Healthz)

	g := e.Group("/api/v1")
	g.POST("/route", s.Route)
	g.POST("/cache/invalidate", s.InvalidateCache)
	g.POST("/graph/rebuild", s.RebuildGraph)
	g.GET("/metrics", s.GetMetrics)
}

// Healthz reports liveness.
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "Service ready.")
}
