package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prepshare/prepshare-go/internal/api"
	"github.com/prepshare/prepshare-go/internal/appctx"
	"github.com/prepshare/prepshare-go/internal/cache"
	"github.com/prepshare/prepshare-go/internal/platform/metrics"
	"github.com/prepshare/prepshare-go/internal/ratelimit"
)

// loggingMiddleware logs request information using slog and records the
// request duration histogram. It also seeds the context with a
// request-scoped logger so downstream warnings carry the request ID.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLogger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(appctx.WithLogger(r.Context(), reqLogger))

		defer func() {
			elapsed := time.Since(start)
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"client_ip", s.trustedProxies.GetClientIPString(r),
				"request_id", middleware.GetReqID(r.Context()),
			)
			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, routePattern(r), strconv.Itoa(ww.Status())).
				Observe(elapsed.Seconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

// routePattern returns the chi route pattern for metrics labels, falling
// back to the raw path when no pattern matched. The pattern is only
// populated once routing has run, so this must be read after the handler.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// authMiddleware enforces session authentication.
// Public endpoints (health, login, metrics) bypass auth.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthRequired(r.URL.Path, s.cfg.ExternalBasePath) {
			next.ServeHTTP(w, r)
			return
		}

		sessionToken := api.ExtractToken(r)
		if sessionToken == "" {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "authentication required")
			return
		}

		session, err := s.deps.SessionRepo.Get(r.Context(), sessionToken)
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session not found or expired")
			return
		}
		if session.IsExpired() {
			api.WriteUnauthorized(w, api.ReasonSessionExpired, "session has expired")
			return
		}

		user, err := s.deps.PartyRepo.Get(r.Context(), session.UserID)
		if err != nil {
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, "session user not found")
			return
		}

		ctx := api.WithSession(r.Context(), session)
		ctx = api.WithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitConfig holds configuration for a rate-limited endpoint.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// rateLimitMiddleware applies per-client-IP rate limiting to specific
// paths. Paths with a non-positive budget are left unlimited.
func (s *Server) rateLimitMiddleware(config map[string]RateLimitConfig) func(next http.Handler) http.Handler {
	limiters := make(map[string]*ratelimit.Limiter)
	for path, cfg := range config {
		if cfg.RequestsPerMinute > 0 {
			limiters[path] = ratelimit.New(s.rateCounter, &ratelimit.Config{
				RequestsPerWindow: int64(cfg.RequestsPerMinute),
				Burst:             int64(cfg.Burst),
				Window:            cache.TTLRateLimit,
				KeyPrefix:         "ratelimit:" + path + ":",
			})
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var limiter *ratelimit.Limiter
			var matchedPath string
			for path, l := range limiters {
				fullPath := s.cfg.ExternalBasePath + path
				if r.URL.Path == fullPath || strings.HasPrefix(r.URL.Path, fullPath+"/") {
					limiter = l
					matchedPath = path
					break
				}
			}

			if limiter != nil {
				clientIP := s.trustedProxies.GetClientIPString(r)
				result, err := limiter.Allow(r.Context(), clientIP)
				if err == nil && !result.Allowed {
					appctx.GetLogger(r.Context()).Warn("rate limit exceeded",
						"path", matchedPath,
						"client_ip", clientIP,
					)
					retryAfter := int(time.Until(result.ResetAt).Seconds())
					if retryAfter < 1 {
						retryAfter = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
					api.WriteTooManyRequests(w, "too many requests, please try again later")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
