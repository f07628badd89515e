// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prepshare/prepshare-go/internal/api"
	"github.com/prepshare/prepshare-go/internal/cache"
	cachememory "github.com/prepshare/prepshare-go/internal/cache/memory"
	"github.com/prepshare/prepshare-go/internal/config"
	"github.com/prepshare/prepshare-go/internal/engine"
	"github.com/prepshare/prepshare-go/internal/identity"
	"github.com/prepshare/prepshare-go/internal/store"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: identity and auth
	PartyRepo   identity.PartyRepo
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Required: community membership (offer visibility boundary)
	CommunityRepo identity.CommunityRepo

	// Required: persistence
	Store store.Driver

	// Optional: projection cache (nil disables caching)
	ProjectionCache cache.Cache
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies
	rateCounter    cache.Counter

	authHandler          *api.AuthHandler
	inventoryHandler     *api.InventoryHandler
	offersHandler        *api.OffersHandler
	requestsHandler      *api.RequestsHandler
	notificationsHandler *api.NotificationsHandler
	statusHandler        *api.StatusHandler
	communitiesHandler   *api.CommunitiesHandler
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	// Engine services share the store; the dispatcher turns coordinator
	// events into notifications after each transaction commits.
	baseURL := strings.TrimSuffix(cfg.ExternalOrigin, "/") + cfg.ExternalBasePath
	inventory := engine.NewInventory(deps.Store, logger)
	sharing := engine.NewSharingRegistry(deps.Store, deps.CommunityRepo, logger)
	dispatcher := engine.NewDispatcher(deps.Store, deps.PartyRepo, baseURL, logger)
	coordinator := engine.NewRequestCoordinator(deps.Store, deps.CommunityRepo, dispatcher, logger)
	notifications := engine.NewNotifications(deps.Store)
	projector := engine.NewStatusProjector(deps.Store, deps.ProjectionCache, logger)

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		trustedProxies: NewTrustedProxies(cfg.Server.TrustedProxies),
		rateCounter:    cachememory.New(cache.TTLRateLimit, time.Minute),

		authHandler:          api.NewAuthHandler(deps.PartyRepo, deps.SessionRepo, deps.UserAuth),
		inventoryHandler:     api.NewInventoryHandler(inventory),
		offersHandler:        api.NewOffersHandler(sharing, coordinator, projector),
		requestsHandler:      api.NewRequestsHandler(coordinator),
		notificationsHandler: api.NewNotificationsHandler(notifications),
		statusHandler:        api.NewStatusHandler(projector),
		communitiesHandler:   api.NewCommunitiesHandler(deps.CommunityRepo),
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"external_base_path", s.cfg.ExternalBasePath,
		"store_driver", s.deps.Store.Name(),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the configured router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.PartyRepo == nil {
		return fmt.Errorf("%w: PartyRepo", ErrMissingDep)
	}
	if deps.SessionRepo == nil {
		return fmt.Errorf("%w: SessionRepo", ErrMissingDep)
	}
	if deps.UserAuth == nil {
		return fmt.Errorf("%w: UserAuth", ErrMissingDep)
	}
	if deps.CommunityRepo == nil {
		return fmt.Errorf("%w: CommunityRepo", ErrMissingDep)
	}
	if deps.Store == nil {
		return fmt.Errorf("%w: Store", ErrMissingDep)
	}
	return nil
}
