package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prepshare/prepshare-go/internal/api"
	"github.com/prepshare/prepshare-go/internal/platform/metrics"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
	AtHostRoot   bool // true for endpoints mounted at host root, not under base path
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
var routeGroups = []RouteGroup{
	// Prometheus scrape endpoint lives at host root.
	{Name: "metrics", PathPrefix: "/metrics", RequiresAuth: false, AtHostRoot: true},

	// App endpoints (mounted under external_base_path)
	{Name: "api", PathPrefix: "/api", RequiresAuth: true, AtHostRoot: false},
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// publicExceptions are specific paths that don't require auth within
// otherwise protected groups.
var publicExceptions = []string{
	"/api/healthz",
	"/api/auth/login",
}

// IsAuthRequired checks if a given path requires authentication.
// This is used by the auth middleware to make gating decisions.
func IsAuthRequired(path string, basePath string) bool {
	// Check root-only endpoints first
	for _, rg := range routeGroups {
		if rg.AtHostRoot {
			if pathMatchesPrefix(path, rg.PathPrefix) {
				return rg.RequiresAuth
			}
		}
	}

	// Check public exceptions (paths that are always public)
	for _, exc := range publicExceptions {
		fullExc := basePath + exc
		if pathMatchesPrefix(path, fullExc) {
			return false
		}
	}

	// Check base-path-mounted endpoints
	for _, rg := range routeGroups {
		if !rg.AtHostRoot {
			fullPrefix := basePath + rg.PathPrefix
			if pathMatchesPrefix(path, fullPrefix) {
				return rg.RequiresAuth
			}
		}
	}

	// Default: require auth for unknown paths
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging).
	// RequestID must come first so GetReqID works in loggingMiddleware.
	// loggingMiddleware wraps the response, Recoverer writes through the
	// wrapper, so the access log captures correct status for panics.
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Rate limiting for credential-guessing surfaces
	rateLimitConfig := map[string]RateLimitConfig{
		"/api/auth/login": {
			RequestsPerMinute: s.cfg.RateLimit.LoginPerMinute,
			Burst:             s.cfg.RateLimit.LoginBurst,
		},
	}
	r.Use(s.rateLimitMiddleware(rateLimitConfig))

	// Auth middleware for all routes (checks IsAuthRequired)
	r.Use(s.authMiddleware)

	r.Method("GET", "/metrics", metrics.Handler())

	// Mount app endpoints under external_base_path
	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			s.mountAppEndpoints(r)
		})
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts app endpoints (may be under base path).
func (s *Server) mountAppEndpoints(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", api.HealthHandler)

		// Auth endpoints (login is public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.authHandler.Login)
			r.Post("/logout", s.authHandler.Logout)
			r.Get("/me", s.authHandler.GetCurrentUser)
		})

		// Personal stockpile
		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", s.inventoryHandler.List)
			r.Post("/", s.inventoryHandler.Create)
			r.Get("/{resourceID}", s.inventoryHandler.Get)
			r.Patch("/{resourceID}", s.inventoryHandler.Update)
			r.Delete("/{resourceID}", s.inventoryHandler.Delete)
		})

		// Shared offers and the requests filed against them
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", s.offersHandler.List)
			r.Post("/", s.offersHandler.Create)
			r.Get("/{offerID}", s.offersHandler.Get)
			r.Patch("/{offerID}", s.offersHandler.Update)
			r.Delete("/{offerID}", s.offersHandler.Delete)
			r.Get("/{offerID}/requests", s.offersHandler.ListRequests)
			r.Post("/{offerID}/requests", s.offersHandler.CreateRequest)
			r.Get("/{offerID}/status", s.offersHandler.Status)
		})

		// Requests from the caller's point of view
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", s.requestsHandler.List)
			r.Get("/{requestID}", s.requestsHandler.Get)
			r.Post("/{requestID}/approve", s.requestsHandler.Approve)
			r.Post("/{requestID}/deny", s.requestsHandler.Deny)
			r.Post("/{requestID}/complete", s.requestsHandler.Complete)
			r.Post("/{requestID}/cancel", s.requestsHandler.Cancel)
		})

		// Notification feed
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.notificationsHandler.List)
			r.Get("/unread-count", s.notificationsHandler.UnreadCount)
			r.Post("/read-all", s.notificationsHandler.MarkAllRead)
			r.Post("/{notificationID}/read", s.notificationsHandler.MarkRead)
			r.Delete("/{notificationID}", s.notificationsHandler.Delete)
		})

		// Derived readiness views
		r.Route("/status", func(r chi.Router) {
			r.Get("/fulfillment", s.statusHandler.Fulfillment)
			r.Get("/shared", s.statusHandler.Shared)
		})

		// Communities and membership
		r.Route("/communities", func(r chi.Router) {
			r.Get("/", s.communitiesHandler.List)
			r.Post("/", s.communitiesHandler.Create)
			r.Get("/mine", s.communitiesHandler.ListMine)
			r.Get("/{communityID}", s.communitiesHandler.Get)
			r.Post("/{communityID}/join", s.communitiesHandler.Join)
			r.Post("/{communityID}/leave", s.communitiesHandler.Leave)
		})
	})
}
