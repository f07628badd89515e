package api

import (
	"context"
	"net/http"

	"github.com/prepshare/prepshare-go/internal/identity"
)

type contextKey string

const (
	// SessionContextKey is the context key for the current session.
	SessionContextKey contextKey = "session"
	// UserContextKey is the context key for the current user.
	UserContextKey contextKey = "user"
)

// WithSession stores the session in the context.
func WithSession(ctx context.Context, s *identity.Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, s)
}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, UserContextKey, u)
}

// SessionFromContext returns the session from request context, or nil.
func SessionFromContext(ctx context.Context) *identity.Session {
	s, _ := ctx.Value(SessionContextKey).(*identity.Session)
	return s
}

// UserFromContext returns the user from request context, or nil.
func UserFromContext(ctx context.Context) *identity.User {
	u, _ := ctx.Value(UserContextKey).(*identity.User)
	return u
}

// RequireUser fetches the authenticated user or writes a 401. The auth
// middleware normally guarantees the user is present; this guards handlers
// mounted outside it.
func RequireUser(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	u := UserFromContext(r.Context())
	if u == nil {
		WriteUnauthorized(w, ReasonUnauthenticated, "authentication required")
		return nil, false
	}
	return u, true
}
