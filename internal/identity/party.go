// Package identity provides user management, community membership,
// authentication, and session handling.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrEmailExists          = errors.New("email already in use")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSuperAdminProtected  = errors.New("super admin cannot be deleted or demoted")
	ErrSuperAdminRoleChange = errors.New("super admin role cannot be changed")
)

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User represents a party in the system.
type User struct {
	ID           string    `json:"id"` // UUIDv7
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // argon2id PHC string, never serialized
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin
}

func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// PartyRepo provides user storage operations.
type PartyRepo interface {
	// Create creates a new user. Returns ErrUserExists if username is taken.
	Create(ctx context.Context, user *User) error

	// Get retrieves a user by ID. Returns ErrUserNotFound if not found.
	Get(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves a user by username. Returns ErrUserNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *User) error

	// Delete removes a user by ID.
	Delete(ctx context.Context, id string) error

	// List returns all users.
	List(ctx context.Context) ([]*User, error)
}

// UUIDv7 returns a time-ordered UUIDv7, falling back to v4 on entropy failure.
func UUIDv7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryPartyRepo stores users in memory with username and email indexes.
type MemoryPartyRepo struct {
	mu         sync.RWMutex
	users      map[string]*User  // by ID
	byUsername map[string]string // username -> ID
	byEmail    map[string]string // normalized email -> ID (only non-empty emails)
}

func NewMemoryPartyRepo() *MemoryPartyRepo {
	return &MemoryPartyRepo{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *MemoryPartyRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return ErrUserExists
	}

	if norm := normalizeEmail(user.Email); norm != "" {
		if _, exists := r.byEmail[norm]; exists {
			return ErrEmailExists
		}
	}

	if user.ID == "" {
		user.ID = UUIDv7()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	u := *user
	r.users[user.ID] = &u
	r.byUsername[user.Username] = user.ID

	if norm := normalizeEmail(user.Email); norm != "" {
		r.byEmail[norm] = user.ID
	}

	return nil
}

func (r *MemoryPartyRepo) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *MemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}

	u := *r.users[id]
	return &u, nil
}

func (r *MemoryPartyRepo) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if existing.Role == RoleSuperAdmin && user.Role != RoleSuperAdmin {
		return ErrSuperAdminRoleChange
	}

	if existing.Username != user.Username {
		delete(r.byUsername, existing.Username)
		r.byUsername[user.Username] = user.ID
	}
	oldNorm := normalizeEmail(existing.Email)
	newNorm := normalizeEmail(user.Email)
	if oldNorm != newNorm {
		if oldNorm != "" {
			delete(r.byEmail, oldNorm)
		}
		if newNorm != "" {
			if ownerID, exists := r.byEmail[newNorm]; exists && ownerID != user.ID {
				return ErrEmailExists
			}
			r.byEmail[newNorm] = user.ID
		}
	}

	u := *user
	r.users[user.ID] = &u
	return nil
}

func (r *MemoryPartyRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if user.Role == RoleSuperAdmin {
		return ErrSuperAdminProtected
	}

	delete(r.byUsername, user.Username)
	if norm := normalizeEmail(user.Email); norm != "" {
		delete(r.byEmail, norm)
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryPartyRepo) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		u := *user
		result = append(result, &u)
	}
	return result, nil
}
