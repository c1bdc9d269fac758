package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/internal/observability"
	"github.com/hrygo/agentroute/server/routing"
)

// Route handles POST /api/v1/route.
func (s *APIV1Service) Route(c echo.Context) error {
	ctx := c.Request().Context()
	if err := s.routeSem.Acquire(ctx, 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server is overloaded")
	}
	defer s.routeSem.Release(1)

	input := &routing.Input{}
	if err := c.Bind(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}

	reqCtx := observability.NewRequestContext(s.logger, "api")
	decision, err := s.router.Route(observability.WithRequestContext(ctx, reqCtx), input)
	if err != nil {
		if errors.Is(err, routing.ErrEmptyQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, "query must not be empty")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to route query").SetInternal(err)
	}
	return c.JSON(http.StatusOK, decision)
}

// InvalidateCacheRequest is the body for POST /api/v1/cache/invalidate.
type InvalidateCacheRequest struct {
	// CandidateID limits invalidation to decisions that selected this
	// candidate; empty clears the whole cache.
	CandidateID string `json:"candidateId"`
	// Reason is mandatory and goes to the audit log.
	Reason string `json:"reason"`
}

// InvalidateCacheResponse reports how many entries were removed.
type InvalidateCacheResponse struct {
	Removed int `json:"removed"`
}

// InvalidateCache handles POST /api/v1/cache/invalidate.
func (s *APIV1Service) InvalidateCache(c echo.Context) error {
	if s.cache == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "cache is disabled")
	}

	request := &InvalidateCacheRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	if request.Reason == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
	}

	removed, err := s.cache.Invalidate(c.Request().Context(), request.CandidateID, request.Reason)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to invalidate cache").SetInternal(err)
	}
	s.metrics.RecordInvalidation()
	return c.JSON(http.StatusOK, &InvalidateCacheResponse{Removed: removed})
}

// RebuildGraphResponse reports the size of the fresh snapshot.
type RebuildGraphResponse struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// RebuildGraph handles POST /api/v1/graph/rebuild.
func (s *APIV1Service) RebuildGraph(c echo.Context) error {
	if s.graph == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "graph retrieval is disabled")
	}

	snapshot, err := s.graph.Rebuild(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to rebuild graph").SetInternal(err)
	}
	s.metrics.RecordGraphRebuild()
	return c.JSON(http.StatusOK, &RebuildGraphResponse{
		Nodes: len(snapshot.Nodes),
		Edges: len(snapshot.Edges),
	})
}

// GetMetrics handles GET /api/v1/metrics.
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Collect())
}
