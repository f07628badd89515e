package identity

import (
	"context"
	"errors"
	"testing"
)

func TestCommunityCreateAutoJoinsCreator(t *testing.T) {
	repo := NewMemoryCommunityRepo()
	ctx := context.Background()

	c := &Community{Name: "Oak Street", CreatedBy: "user-1"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	member, err := repo.IsMember(ctx, c.ID, "user-1")
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("creator should be a member")
	}
}

func TestCommunityJoinLeave(t *testing.T) {
	repo := NewMemoryCommunityRepo()
	ctx := context.Background()

	c := &Community{Name: "Oak Street", CreatedBy: "user-1"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.Join(ctx, c.ID, "user-2"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := repo.Join(ctx, c.ID, "user-2"); !errors.Is(err, ErrAlreadyMember) {
		t.Errorf("expected ErrAlreadyMember, got %v", err)
	}

	members, err := repo.ListMembers(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}

	if err := repo.Leave(ctx, c.ID, "user-2"); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if err := repo.Leave(ctx, c.ID, "user-2"); !errors.Is(err, ErrNotMember) {
		t.Errorf("expected ErrNotMember, got %v", err)
	}
}

func TestCommunityListForUser(t *testing.T) {
	repo := NewMemoryCommunityRepo()
	ctx := context.Background()

	a := &Community{Name: "A", CreatedBy: "user-1"}
	b := &Community{Name: "B", CreatedBy: "user-2"}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Join(ctx, b.ID, "user-1"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	got, err := repo.ListForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 communities, got %d", len(got))
	}

	if _, err := repo.IsMember(ctx, "missing", "user-1"); !errors.Is(err, ErrCommunityNotFound) {
		t.Errorf("expected ErrCommunityNotFound, got %v", err)
	}
}
