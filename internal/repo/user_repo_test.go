package repo

import (
	"context"
	"testing"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

func TestFollow_IdempotentAndQueryable(t *testing.T) {
	db := newRepoDB(t, &domain.Follow{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := Follow(ctx, db, 1, 2); err != nil {
			t.Fatalf("Follow #%d: %v", i, err)
		}
	}

	var n int64
	db.Model(&domain.Follow{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 follow row, got %d", n)
	}

	if ok, _ := IsFollowing(ctx, db, 1, 2); !ok {
		t.Fatal("IsFollowing(1,2) should be true")
	}
	if ok, _ := IsFollowing(ctx, db, 2, 1); ok {
		t.Fatal("follow is not symmetric")
	}

	if err := Unfollow(ctx, db, 1, 2); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	if ok, _ := IsFollowing(ctx, db, 1, 2); ok {
		t.Fatal("IsFollowing should be false after Unfollow")
	}
}

func TestIsBlockedBetween_EitherDirection(t *testing.T) {
	db := newRepoDB(t, &domain.UserBlock{})
	ctx := context.Background()

	if err := Block(ctx, db, 2, 1); err != nil {
		t.Fatalf("Block: %v", err)
	}

	if ok, _ := IsBlockedBetween(ctx, db, 1, 2); !ok {
		t.Fatal("block must be detected regardless of argument order")
	}
	if ok, _ := IsBlockedBetween(ctx, db, 2, 1); !ok {
		t.Fatal("block must be detected in the blocker's direction too")
	}
	if ok, _ := IsBlocking(ctx, db, 1, 2); ok {
		t.Fatal("IsBlocking(1,2) should be false, the block goes the other way")
	}

	if err := Unblock(ctx, db, 2, 1); err != nil {
		t.Fatalf("Unblock: %v", err)
	}
	if ok, _ := IsBlockedBetween(ctx, db, 1, 2); ok {
		t.Fatal("no block should remain after Unblock")
	}
}

func TestSearchUsers_SubstringMatch(t *testing.T) {
	db := newRepoDB(t, &domain.User{})
	ctx := context.Background()

	for _, name := range []string{"alice", "malice", "bob"} {
		u := domain.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
		if err := CreateUser(ctx, db, &u); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}

	got, err := SearchUsers(ctx, db, "lice", 10)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(got) != 2 || got[0].Username != "alice" || got[1].Username != "malice" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestFollowedIDs(t *testing.T) {
	db := newRepoDB(t, &domain.Follow{})
	ctx := context.Background()

	_ = Follow(ctx, db, 1, 2)
	_ = Follow(ctx, db, 1, 3)
	_ = Follow(ctx, db, 2, 3)

	ids, err := FollowedIDs(ctx, db, 1)
	if err != nil {
		t.Fatalf("FollowedIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 followees, got %v", ids)
	}
}
