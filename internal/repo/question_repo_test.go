package repo

import (
	"context"
	"testing"
	"time"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

func TestQuestionsReceived_ExcludesAnswered(t *testing.T) {
	db := newRepoDB(t, &domain.Question{}, &domain.Answer{})
	ctx := context.Background()

	q1, err := CreateQuestion(ctx, db, 1, 2, "first?", false)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	q2, err := CreateQuestion(ctx, db, 3, 2, "second?", true)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	if _, err := CreateQuestion(ctx, db, 1, 3, "other receiver?", false); err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	if _, err := CreateAnswer(ctx, db, q1.ID, 2, "answered"); err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}

	got, err := QuestionsReceived(ctx, db, 2, 0, 10)
	if err != nil {
		t.Fatalf("QuestionsReceived: %v", err)
	}
	if len(got) != 1 || got[0].ID != q2.ID {
		t.Fatalf("expected only the unanswered question, got %+v", got)
	}
}

func TestFeed_FollowedRespondersNewestFirst(t *testing.T) {
	db := newRepoDB(t, &domain.Answer{})
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	seed := func(responder int64, content string, offset time.Duration) {
		a := domain.Answer{QuestionID: 1, ResponderID: responder, Content: content, CreatedAt: base.Add(offset)}
		if err := db.Create(&a).Error; err != nil {
			t.Fatalf("seed %s: %v", content, err)
		}
	}
	seed(2, "old-from-2", 0)
	seed(3, "from-3", time.Minute)
	seed(2, "new-from-2", 2*time.Minute)
	seed(4, "not-followed", 3*time.Minute)

	got, err := Feed(ctx, db, []int64{2, 3}, 0, 10)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(got))
	}
	if got[0].Content != "new-from-2" || got[1].Content != "from-3" || got[2].Content != "old-from-2" {
		t.Fatalf("wrong order: %+v", got)
	}

	// An empty follow set yields an empty feed, not a full scan.
	empty, err := Feed(ctx, db, nil, 0, 10)
	if err != nil {
		t.Fatalf("Feed(empty): %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty feed, got %d rows", len(empty))
	}
}

func TestLikeAnswer_IdempotentToggle(t *testing.T) {
	db := newRepoDB(t, &domain.AnswerLike{})
	ctx := context.Background()

	created, err := LikeAnswer(ctx, db, 10, 1)
	if err != nil || !created {
		t.Fatalf("LikeAnswer: created=%v err=%v", created, err)
	}
	created, err = LikeAnswer(ctx, db, 10, 1)
	if err != nil || created {
		t.Fatalf("repeat LikeAnswer must be a no-op: created=%v err=%v", created, err)
	}

	if n, _ := LikeCount(ctx, db, 10); n != 1 {
		t.Fatalf("expected 1 like, got %d", n)
	}
	if ok, _ := IsLiked(ctx, db, 10, 1); !ok {
		t.Fatal("IsLiked should be true")
	}

	if err := UnlikeAnswer(ctx, db, 10, 1); err != nil {
		t.Fatalf("UnlikeAnswer: %v", err)
	}
	if err := UnlikeAnswer(ctx, db, 10, 1); err != nil {
		t.Fatalf("repeat UnlikeAnswer: %v", err)
	}
	if n, _ := LikeCount(ctx, db, 10); n != 0 {
		t.Fatalf("expected 0 likes, got %d", n)
	}
}

func TestDeleteQuestion_ReceiverOnlyWithAnswer(t *testing.T) {
	db := newRepoDB(t, &domain.Question{}, &domain.Answer{})
	ctx := context.Background()

	q, _ := CreateQuestion(ctx, db, 1, 2, "q?", false)
	if _, err := CreateAnswer(ctx, db, q.ID, 2, "a"); err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}

	ok, err := DeleteQuestion(ctx, db, q.ID, 1)
	if err != nil {
		t.Fatalf("DeleteQuestion (asker): %v", err)
	}
	if ok {
		t.Fatal("only the receiver may delete a question")
	}

	ok, err = DeleteQuestion(ctx, db, q.ID, 2)
	if err != nil || !ok {
		t.Fatalf("DeleteQuestion (receiver): ok=%v err=%v", ok, err)
	}
	var answers int64
	db.Model(&domain.Answer{}).Count(&answers)
	if answers != 0 {
		t.Fatalf("expected answer removed with question, got %d", answers)
	}
}

func TestComments_CreateListDelete(t *testing.T) {
	db := newRepoDB(t, &domain.Comment{})
	ctx := context.Background()

	c1, err := CreateComment(ctx, db, 5, 1, "first")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if _, err := CreateComment(ctx, db, 5, 2, "second"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	got, err := ListComments(ctx, db, 5, 0, 10)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(got) != 2 || got[0].Content != "first" {
		t.Fatalf("unexpected comments: %+v", got)
	}

	ok, err := DeleteComment(ctx, db, c1.ID, 2)
	if err != nil {
		t.Fatalf("DeleteComment (wrong author): %v", err)
	}
	if ok {
		t.Fatal("only the author may delete a comment")
	}
	ok, err = DeleteComment(ctx, db, c1.ID, 1)
	if err != nil || !ok {
		t.Fatalf("DeleteComment: ok=%v err=%v", ok, err)
	}
}
