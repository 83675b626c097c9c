package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCanonicalPair_OrdersSmallerFirst(t *testing.T) {
	a, b := CanonicalPair(7, 3)
	if a != 3 || b != 7 {
		t.Fatalf("CanonicalPair(7,3) = (%d,%d), want (3,7)", a, b)
	}
	a, b = CanonicalPair(3, 7)
	if a != 3 || b != 7 {
		t.Fatalf("CanonicalPair(3,7) = (%d,%d), want (3,7)", a, b)
	}
}

func TestGetOrCreateConversation_ReusesCanonicalRow(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{})
	ctx := context.Background()

	c1, err := GetOrCreateConversation(ctx, db, 9, 4)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}
	if c1.User1ID != 4 || c1.User2ID != 9 {
		t.Fatalf("pair not canonical: %+v", c1)
	}

	// Same pair in the opposite order must map to the same row.
	c2, err := GetOrCreateConversation(ctx, db, 4, 9)
	if err != nil {
		t.Fatalf("GetOrCreateConversation (reversed): %v", err)
	}
	if c2.ID != c1.ID {
		t.Fatalf("expected one conversation, got IDs %d and %d", c1.ID, c2.ID)
	}

	var n int64
	if err := db.Model(&domain.Conversation{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 conversation row, got %d", n)
	}
}

func TestListConversationsForUser_NewestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{})
	ctx := context.Background()

	old := domain.Conversation{User1ID: 1, User2ID: 2, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed old: %v", err)
	}
	recent := domain.Conversation{User1ID: 1, User2ID: 3, CreatedAt: time.Now().UTC()}
	if err := db.Create(&recent).Error; err != nil {
		t.Fatalf("seed recent: %v", err)
	}
	other := domain.Conversation{User1ID: 2, User2ID: 3, CreatedAt: time.Now().UTC()}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}

	got, err := ListConversationsForUser(ctx, db, 1)
	if err != nil {
		t.Fatalf("ListConversationsForUser: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 conversations for user 1, got %d", len(got))
	}
	if got[0].ID != recent.ID || got[1].ID != old.ID {
		t.Fatalf("wrong order: got IDs %d,%d", got[0].ID, got[1].ID)
	}
}

func TestDeleteConversation_CascadesMessagesAndReactions(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.DirectMessage{}, &domain.MessageReaction{})
	ctx := context.Background()

	conv, err := GetOrCreateConversation(ctx, db, 1, 2)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}
	msg, err := CreateMessage(ctx, db, conv.ID, 1, 2, "hello", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := AddReaction(ctx, db, msg.ID, 2, "🔥"); err != nil {
		t.Fatalf("AddReaction: %v", err)
	}

	if err := DeleteConversation(ctx, db, conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}

	var msgs, reactions, convs int64
	db.Model(&domain.DirectMessage{}).Count(&msgs)
	db.Model(&domain.MessageReaction{}).Count(&reactions)
	db.Model(&domain.Conversation{}).Count(&convs)
	if msgs != 0 || reactions != 0 || convs != 0 {
		t.Fatalf("cascade incomplete: msgs=%d reactions=%d convs=%d", msgs, reactions, convs)
	}
}

func TestConversationOther(t *testing.T) {
	c := domain.Conversation{User1ID: 4, User2ID: 9}
	if other, ok := c.Other(4); !ok || other != 9 {
		t.Fatalf("Other(4) = (%d,%v), want (9,true)", other, ok)
	}
	if other, ok := c.Other(9); !ok || other != 4 {
		t.Fatalf("Other(9) = (%d,%v), want (4,true)", other, ok)
	}
	if _, ok := c.Other(5); ok {
		t.Fatal("Other(5) should report not a participant")
	}
}
