package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCommunityNotFound = errors.New("community not found")
	ErrCommunityExists   = errors.New("community already exists")
	ErrAlreadyMember     = errors.New("already a member")
	ErrNotMember         = errors.New("not a member")
)

// Community is a membership-scoped group. It is the visibility boundary
// for shared offers.
type Community struct {
	ID          string    `json:"id"` // UUIDv7
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommunityRepo provides community and membership storage operations.
type CommunityRepo interface {
	// Create creates a new community. The creator becomes its first member.
	Create(ctx context.Context, community *Community) error

	// Get retrieves a community by ID. Returns ErrCommunityNotFound if missing.
	Get(ctx context.Context, id string) (*Community, error)

	// List returns all communities.
	List(ctx context.Context) ([]*Community, error)

	// Join adds a user to a community.
	Join(ctx context.Context, communityID, userID string) error

	// Leave removes a user from a community.
	Leave(ctx context.Context, communityID, userID string) error

	// IsMember reports whether the user belongs to the community.
	IsMember(ctx context.Context, communityID, userID string) (bool, error)

	// ListMembers returns the user IDs of all members.
	ListMembers(ctx context.Context, communityID string) ([]string, error)

	// ListForUser returns the communities the user belongs to.
	ListForUser(ctx context.Context, userID string) ([]*Community, error)
}

// MemoryCommunityRepo is an in-memory implementation of CommunityRepo.
type MemoryCommunityRepo struct {
	mu          sync.RWMutex
	communities map[string]*Community          // by ID
	members     map[string]map[string]struct{} // communityID -> set of userIDs
	byUser      map[string]map[string]struct{} // userID -> set of communityIDs
}

// NewMemoryCommunityRepo creates a new in-memory community repository.
func NewMemoryCommunityRepo() *MemoryCommunityRepo {
	return &MemoryCommunityRepo{
		communities: make(map[string]*Community),
		members:     make(map[string]map[string]struct{}),
		byUser:      make(map[string]map[string]struct{}),
	}
}

func (r *MemoryCommunityRepo) Create(ctx context.Context, community *Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if community.ID == "" {
		community.ID = UUIDv7()
	}
	if _, exists := r.communities[community.ID]; exists {
		return ErrCommunityExists
	}
	if community.CreatedAt.IsZero() {
		community.CreatedAt = time.Now()
	}

	c := *community
	r.communities[community.ID] = &c
	r.members[community.ID] = make(map[string]struct{})

	if community.CreatedBy != "" {
		r.addMember(community.ID, community.CreatedBy)
	}

	return nil
}

func (r *MemoryCommunityRepo) Get(ctx context.Context, id string) (*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	community, ok := r.communities[id]
	if !ok {
		return nil, ErrCommunityNotFound
	}
	c := *community
	return &c, nil
}

func (r *MemoryCommunityRepo) List(ctx context.Context) ([]*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Community, 0, len(r.communities))
	for _, community := range r.communities {
		c := *community
		result = append(result, &c)
	}
	return result, nil
}

func (r *MemoryCommunityRepo) Join(ctx context.Context, communityID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.communities[communityID]; !ok {
		return ErrCommunityNotFound
	}
	if _, ok := r.members[communityID][userID]; ok {
		return ErrAlreadyMember
	}

	r.addMember(communityID, userID)
	return nil
}

func (r *MemoryCommunityRepo) Leave(ctx context.Context, communityID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.communities[communityID]; !ok {
		return ErrCommunityNotFound
	}
	if _, ok := r.members[communityID][userID]; !ok {
		return ErrNotMember
	}

	delete(r.members[communityID], userID)
	delete(r.byUser[userID], communityID)
	if len(r.byUser[userID]) == 0 {
		delete(r.byUser, userID)
	}
	return nil
}

func (r *MemoryCommunityRepo) IsMember(ctx context.Context, communityID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.communities[communityID]; !ok {
		return false, ErrCommunityNotFound
	}
	_, ok := r.members[communityID][userID]
	return ok, nil
}

func (r *MemoryCommunityRepo) ListMembers(ctx context.Context, communityID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.members[communityID]
	if !ok {
		return nil, ErrCommunityNotFound
	}

	result := make([]string, 0, len(members))
	for userID := range members {
		result = append(result, userID)
	}
	return result, nil
}

func (r *MemoryCommunityRepo) ListForUser(ctx context.Context, userID string) ([]*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Community
	for communityID := range r.byUser[userID] {
		if community, ok := r.communities[communityID]; ok {
			c := *community
			result = append(result, &c)
		}
	}
	return result, nil
}

// addMember updates both membership indexes. Caller holds the lock.
func (r *MemoryCommunityRepo) addMember(communityID, userID string) {
	if r.members[communityID] == nil {
		r.members[communityID] = make(map[string]struct{})
	}
	r.members[communityID][userID] = struct{}{}

	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][communityID] = struct{}{}
}
