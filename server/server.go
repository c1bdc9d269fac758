// Package server assembles the routing pipeline and serves it over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/internal/observability"
	"github.com/hrygo/agentroute/internal/profile"
	"github.com/hrygo/agentroute/plugin/ai"
	apiv1 "github.com/hrygo/agentroute/server/router/api/v1"
	"github.com/hrygo/agentroute/server/routing"
	"github.com/hrygo/agentroute/server/routing/cache"
	"github.com/hrygo/agentroute/server/routing/graph"
	"github.com/hrygo/agentroute/server/routing/probe"
	"github.com/hrygo/agentroute/server/routing/registry"
	"github.com/hrygo/agentroute/store"
)

// Server is the agentroute HTTP server.
type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	store   *store.Store
	logger  *slog.Logger

	graphProvider *graph.Provider
}

// NewServer wires the full pipeline from the profile and store.
func NewServer(ctx context.Context, profile *profile.Profile, st *store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	strategy, err := newStrategy(profile, logger)
	if err != nil {
		return nil, err
	}

	candidates, capabilities, err := loadRegistries(profile)
	if err != nil {
		return nil, err
	}

	config := routing.DefaultConfig()

	decisionCache, err := cache.NewSemantic(config.Cache, strategy, st, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create semantic cache")
	}
	if err := decisionCache.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "load semantic cache")
	}

	var vectorizer ai.Vectorizer
	if v, ok := strategy.(ai.Vectorizer); ok {
		vectorizer = v
	}
	builder := graph.NewBuilder(candidates, capabilities, vectorizer, logger)
	graphProvider := graph.NewProvider(builder, st, logger)
	if err := graphProvider.LoadPersisted(ctx); err != nil {
		return nil, errors.Wrap(err, "load persisted graph")
	}
	if _, err := graphProvider.Rebuild(ctx); err != nil {
		logger.Warn("initial graph build failed, graph stage starts from persisted state", "error", err)
	}
	retriever := graph.NewRetriever(config.Graph, strategy, graphProvider, logger)

	metrics := observability.NewMetrics()
	prober := probe.NewProber(config.Probe, st, strategy, metrics, logger)
	matcher := routing.NewMatcher(candidates, strategy)

	router, err := routing.NewRouter(config, candidates, matcher, decisionCache, prober, retriever, metrics, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create router")
	}

	apiService := apiv1.NewAPIV1Service(profile, router, decisionCache, graphProvider, metrics, logger)
	apiService.Register(e)

	return &Server{
		e:             e,
		profile:       profile,
		store:         st,
		logger:        logger,
		graphProvider: graphProvider,
	}, nil
}

// Start begins serving; it blocks until the listener fails or is shut down.
func (s *Server) Start(_ context.Context) error {
	return s.e.Start(fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port))
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.e.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down http server", "error", err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close store", "error", err)
		}
	}
	s.logger.Info("agentroute stopped")
}

// newStrategy picks the similarity strategy: embedding-backed when the
// profile enables it, lexical token overlap otherwise.
func newStrategy(profile *profile.Profile, logger *slog.Logger) (ai.Strategy, error) {
	if !profile.IsEmbeddingEnabled() {
		return ai.NewTokenOverlap(), nil
	}

	provider, err := ai.NewEmbeddingProvider(&ai.EmbeddingConfig{
		BaseURL: profile.EmbeddingBaseURL,
		APIKey:  profile.EmbeddingAPIKey,
		Model:   profile.EmbeddingModel,
		Dim:     profile.EmbeddingDim,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create embedding provider")
	}
	return ai.NewEmbeddingStrategy(provider, logger), nil
}

// loadRegistries reads the registry file when configured; otherwise the
// server starts with an empty candidate pool and every query routes to
// nobody until a registry is provided.
func loadRegistries(profile *profile.Profile) (registry.CandidateRegistry, registry.CapabilityRegistry, error) {
	if profile.Registry == "" {
		static := registry.NewStatic(nil, nil)
		return static, static, nil
	}
	static, err := registry.LoadFromFile(profile.Registry)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load registry file")
	}
	return static, static, nil
}
