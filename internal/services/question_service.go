// Package services – QuestionService
//
// Questions, answers, likes, and comments. Asking is gated by the receiver's
// existence, blocks in either direction, and the receiver's followers-only
// setting. All social actions notify the affected user through the
// NotificationService.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/cache"
	"github.com/iwonder/iwonder-backend/internal/domain"
	"github.com/iwonder/iwonder-backend/internal/repo"
)

// AnswerView is an answer enriched with its question, like tally, and
// whether the viewing user has liked it.
type AnswerView struct {
	Answer    domain.Answer    `json:"answer"`
	Question  *domain.Question `json:"question"`
	LikeCount int64            `json:"like_count"`
	Liked     bool             `json:"liked"`
}

// QuestionService coordinates the ask/answer lifecycle.
type QuestionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache is the read-through cache; it may be disabled.
	Cache *cache.Cache
	// Notifications creates the side-effect notifications; it may be nil in
	// tests that only exercise persistence.
	Notifications *NotificationService

	// ListTTL bounds staleness of cached pages (inbox, feed, user answers).
	ListTTL time.Duration
	// MaxContentRunes caps question, answer, and comment length.
	MaxContentRunes int
}

// NewQuestionService constructs a QuestionService with default limits.
func NewQuestionService(db *gorm.DB, c *cache.Cache, notifs *NotificationService) *QuestionService {
	return &QuestionService{
		DB:              db,
		Cache:           c,
		Notifications:   notifs,
		ListTTL:         10 * time.Second,
		MaxContentRunes: 3000,
	}
}

func (s *QuestionService) validContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return "", ErrContentTooLong
	}
	return content, nil
}

func (s *QuestionService) notify(ctx context.Context, userID int64, typ, content string, relatedUserID, relatedItemID *int64) {
	if s.Notifications == nil {
		return
	}
	// Notification failures never fail the triggering action.
	_, _ = s.Notifications.Create(ctx, userID, typ, content, relatedUserID, relatedItemID)
}

// CreateQuestion asks receiverID a question. The receiver must exist, no
// block may stand between the two users, and a followers-only receiver
// accepts questions only from users who follow them.
func (s *QuestionService) CreateQuestion(ctx context.Context, askerID, receiverID int64, content string, anonymous bool) (*domain.Question, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "CreateQuestion",
		trace.WithAttributes(
			attribute.Int64("asker.id", askerID),
			attribute.Int64("receiver.id", receiverID),
			attribute.Bool("anonymous", anonymous),
		),
	)
	defer span.End()

	content, err := s.validContent(content)
	if err != nil {
		return nil, err
	}
	receiver, err := repo.GetUser(ctx, s.DB, receiverID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	blocked, err := repo.IsBlockedBetween(ctx, s.DB, askerID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}
	if receiver.OnlyFollowersCanAsk && askerID != receiverID {
		follows, err := repo.IsFollowing(ctx, s.DB, askerID, receiverID)
		if err != nil {
			return nil, err
		}
		if !follows {
			return nil, ErrOnlyFollowers
		}
	}

	q, err := repo.CreateQuestion(ctx, s.DB, askerID, receiverID, content, anonymous)
	if err != nil {
		return nil, err
	}
	s.Cache.DeletePrefix(ctx, cache.QuestionsReceivedPrefix(receiverID))

	var relatedUser *int64
	if !anonymous {
		relatedUser = &q.AskerID
	}
	s.notify(ctx, receiverID, domain.NotificationTypeQuestion, "You received a new question", relatedUser, &q.ID)
	return q, nil
}

// QuestionsReceived returns the user's unanswered inbox, newest first.
func (s *QuestionService) QuestionsReceived(ctx context.Context, userID int64, skip, limit int) ([]domain.Question, error) {
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	key := cache.QuestionsReceivedKey(userID, skip, limit)
	var cached []domain.Question
	if s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	out, err := repo.QuestionsReceived(ctx, s.DB, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	s.Cache.SetJSON(ctx, key, out, s.ListTTL)
	return out, nil
}

// GetQuestion returns a question visible to the caller. Only the asker and
// the receiver may see it.
func (s *QuestionService) GetQuestion(ctx context.Context, userID, questionID int64) (*domain.Question, error) {
	q, err := repo.GetQuestion(ctx, s.DB, questionID)
	if err != nil {
		return nil, ErrQuestionNotFound
	}
	if q.AskerID != userID && q.ReceiverID != userID {
		return nil, ErrQuestionNotFound
	}
	return q, nil
}

// DeleteQuestion removes a question from the caller's inbox. Only the
// receiver may delete.
func (s *QuestionService) DeleteQuestion(ctx context.Context, userID, questionID int64) error {
	if _, err := repo.GetQuestion(ctx, s.DB, questionID); err != nil {
		return ErrQuestionNotFound
	}
	ok, err := repo.DeleteQuestion(ctx, s.DB, questionID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	s.Cache.DeletePrefix(ctx, cache.QuestionsReceivedPrefix(userID))
	return nil
}

// CreateAnswer publishes the receiver's answer to a question and notifies
// the asker.
func (s *QuestionService) CreateAnswer(ctx context.Context, userID, questionID int64, content string) (*domain.Answer, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "CreateAnswer",
		trace.WithAttributes(
			attribute.Int64("question.id", questionID),
			attribute.Int64("user.id", userID),
		),
	)
	defer span.End()

	content, err := s.validContent(content)
	if err != nil {
		return nil, err
	}
	q, err := repo.GetQuestion(ctx, s.DB, questionID)
	if err != nil {
		return nil, ErrQuestionNotFound
	}
	if q.ReceiverID != userID {
		return nil, ErrNotAuthorized
	}

	a, err := repo.CreateAnswer(ctx, s.DB, questionID, userID, content)
	if err != nil {
		return nil, err
	}
	s.Cache.DeletePrefix(ctx, cache.QuestionsReceivedPrefix(userID))
	s.Cache.DeletePrefix(ctx, cache.UserAnswersPrefix(userID))

	if q.AskerID != userID {
		s.notify(ctx, q.AskerID, domain.NotificationTypeInfo, "Your question was answered", &userID, &a.ID)
	}
	return a, nil
}

// view builds the enriched answer representation for one viewer.
func (s *QuestionService) view(ctx context.Context, viewerID int64, a domain.Answer) (AnswerView, error) {
	out := AnswerView{Answer: a}
	q, err := repo.GetQuestion(ctx, s.DB, a.QuestionID)
	if err == nil {
		if q.Anonymous {
			q.AskerID = 0 // anonymous askers stay hidden in public views
		}
		out.Question = q
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return out, err
	}
	if out.LikeCount, err = repo.LikeCount(ctx, s.DB, a.ID); err != nil {
		return out, err
	}
	if out.Liked, err = repo.IsLiked(ctx, s.DB, a.ID, viewerID); err != nil {
		return out, err
	}
	return out, nil
}

func (s *QuestionService) views(ctx context.Context, viewerID int64, answers []domain.Answer) ([]AnswerView, error) {
	out := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		v, err := s.view(ctx, viewerID, a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Feed returns answers by the caller and everyone they follow, newest first.
// Pages are cached per viewer; staleness is bounded by ListTTL rather than
// cross-viewer invalidation.
func (s *QuestionService) Feed(ctx context.Context, userID int64, skip, limit int) ([]AnswerView, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "Feed",
		trace.WithAttributes(attribute.Int64("user.id", userID)),
	)
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	key := cache.FeedKey(userID, skip, limit)
	var cached []AnswerView
	if s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	ids, err := repo.FollowedIDs(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	ids = append(ids, userID)
	answers, err := repo.Feed(ctx, s.DB, ids, skip, limit)
	if err != nil {
		return nil, err
	}
	out, err := s.views(ctx, userID, answers)
	if err != nil {
		return nil, err
	}
	s.Cache.SetJSON(ctx, key, out, s.ListTTL)
	return out, nil
}

// UserAnswers returns one user's published answers, newest first, as seen by
// viewerID.
func (s *QuestionService) UserAnswers(ctx context.Context, viewerID, userID int64, skip, limit int) ([]AnswerView, error) {
	if limit <= 0 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	key := cache.UserAnswersKey(userID, skip, limit)
	var cached []AnswerView
	if viewerID == userID && s.Cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	answers, err := repo.UserAnswers(ctx, s.DB, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	out, err := s.views(ctx, viewerID, answers)
	if err != nil {
		return nil, err
	}
	if viewerID == userID {
		s.Cache.SetJSON(ctx, key, out, s.ListTTL)
	}
	return out, nil
}

// LikeAnswer likes an answer on the caller's behalf. Liking twice is a
// no-op; a fresh like notifies the answer's author.
func (s *QuestionService) LikeAnswer(ctx context.Context, userID, answerID int64) error {
	a, err := repo.GetAnswer(ctx, s.DB, answerID)
	if err != nil {
		return ErrAnswerNotFound
	}
	created, err := repo.LikeAnswer(ctx, s.DB, answerID, userID)
	if err != nil {
		return err
	}
	if created && a.ResponderID != userID {
		s.notify(ctx, a.ResponderID, domain.NotificationTypeLike, "Someone liked your answer", &userID, &answerID)
	}
	return nil
}

// UnlikeAnswer removes the caller's like; absent likes are a no-op.
func (s *QuestionService) UnlikeAnswer(ctx context.Context, userID, answerID int64) error {
	if _, err := repo.GetAnswer(ctx, s.DB, answerID); err != nil {
		return ErrAnswerNotFound
	}
	return repo.UnlikeAnswer(ctx, s.DB, answerID, userID)
}

// CreateComment adds the caller's comment on an answer and notifies the
// answer's author.
func (s *QuestionService) CreateComment(ctx context.Context, userID, answerID int64, content string) (*domain.Comment, error) {
	content, err := s.validContent(content)
	if err != nil {
		return nil, err
	}
	a, err := repo.GetAnswer(ctx, s.DB, answerID)
	if err != nil {
		return nil, ErrAnswerNotFound
	}
	blocked, err := repo.IsBlockedBetween(ctx, s.DB, userID, a.ResponderID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	c, err := repo.CreateComment(ctx, s.DB, answerID, userID, content)
	if err != nil {
		return nil, err
	}
	if a.ResponderID != userID {
		s.notify(ctx, a.ResponderID, domain.NotificationTypeComment, "Someone commented on your answer", &userID, &answerID)
	}
	return c, nil
}

// ReportAnswer files a moderation report against an answer. Reports are
// stored for out-of-band review; the answer's author is not notified.
func (s *QuestionService) ReportAnswer(ctx context.Context, userID, answerID int64, reason string) (*domain.AnswerReport, error) {
	reason, err := s.validContent(reason)
	if err != nil {
		return nil, err
	}
	if _, err := repo.GetAnswer(ctx, s.DB, answerID); err != nil {
		return nil, ErrAnswerNotFound
	}
	return repo.CreateAnswerReport(ctx, s.DB, answerID, userID, reason)
}

// ListComments returns an answer's comments, oldest first.
func (s *QuestionService) ListComments(ctx context.Context, answerID int64, skip, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	if _, err := repo.GetAnswer(ctx, s.DB, answerID); err != nil {
		return nil, ErrAnswerNotFound
	}
	return repo.ListComments(ctx, s.DB, answerID, skip, limit)
}

// DeleteComment removes one of the caller's own comments.
func (s *QuestionService) DeleteComment(ctx context.Context, userID, commentID int64) error {
	if _, err := repo.GetComment(ctx, s.DB, commentID); err != nil {
		return ErrCommentNotFound
	}
	ok, err := repo.DeleteComment(ctx, s.DB, commentID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}
