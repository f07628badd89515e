package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	session, err := repo.Create(ctx, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := repo.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("unexpected user %q", got.UserID)
	}

	if err := repo.Delete(ctx, session.Token); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestSessionDeleteByUser(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	s1, _ := repo.Create(ctx, "user-1", time.Hour)
	s2, _ := repo.Create(ctx, "user-1", time.Hour)
	other, _ := repo.Create(ctx, "user-2", time.Hour)

	if err := repo.DeleteByUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteByUser failed: %v", err)
	}

	for _, token := range []string{s1.Token, s2.Token} {
		if _, err := repo.Get(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected session %s gone, got %v", token, err)
		}
	}
	if _, err := repo.Get(ctx, other.Token); err != nil {
		t.Errorf("other user's session should survive: %v", err)
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	repo := NewMemorySessionRepo()
	ctx := context.Background()

	expired, _ := repo.Create(ctx, "user-1", -time.Minute)
	live, _ := repo.Create(ctx, "user-1", time.Hour)

	count, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 expired session removed, got %d", count)
	}
	if _, err := repo.Get(ctx, expired.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expired session still present: %v", err)
	}
	if _, err := repo.Get(ctx, live.Token); err != nil {
		t.Errorf("live session removed: %v", err)
	}
}
