package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iwonder/iwonder-backend/internal/domain"
)

// CreateQuestion inserts a question addressed to receiverID.
func CreateQuestion(ctx context.Context, db *gorm.DB, askerID, receiverID int64, content string, anonymous bool) (*domain.Question, error) {
	q := &domain.Question{
		AskerID:    askerID,
		ReceiverID: receiverID,
		Content:    content,
		Anonymous:  anonymous,
		CreatedAt:  time.Now().UTC(),
	}
	return q, db.WithContext(ctx).Create(q).Error
}

// GetQuestion fetches a question by ID.
func GetQuestion(ctx context.Context, db *gorm.DB, id int64) (*domain.Question, error) {
	var q domain.Question
	if err := db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// QuestionsReceived returns unanswered questions addressed to receiverID,
// newest first.
func QuestionsReceived(ctx context.Context, db *gorm.DB, receiverID int64, skip, limit int) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND id NOT IN (?)", receiverID,
			db.Model(&domain.Answer{}).Select("question_id")).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteQuestion removes a question addressed to receiverID along with any
// answer. The bool reports whether a row matched.
func DeleteQuestion(ctx context.Context, db *gorm.DB, questionID, receiverID int64) (bool, error) {
	var deleted bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND receiver_id = ?", questionID, receiverID).Delete(&domain.Question{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("question_id = ?", questionID).Delete(&domain.Answer{}).Error
	})
	return deleted, err
}

// CreateAnswer inserts the answer to a question.
func CreateAnswer(ctx context.Context, db *gorm.DB, questionID, responderID int64, content string) (*domain.Answer, error) {
	a := &domain.Answer{
		QuestionID:  questionID,
		ResponderID: responderID,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
	return a, db.WithContext(ctx).Create(a).Error
}

// GetAnswer fetches an answer by ID.
func GetAnswer(ctx context.Context, db *gorm.DB, id int64) (*domain.Answer, error) {
	var a domain.Answer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Feed returns answers written by the given responders, newest first.
// Callers pass the viewer's follow set plus the viewer itself.
func Feed(ctx context.Context, db *gorm.DB, responderIDs []int64, skip, limit int) ([]domain.Answer, error) {
	out := []domain.Answer{}
	if len(responderIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Where("responder_id IN ?", responderIDs).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UserAnswers returns all answers by a single responder, newest first.
func UserAnswers(ctx context.Context, db *gorm.DB, responderID int64, skip, limit int) ([]domain.Answer, error) {
	var out []domain.Answer
	err := db.WithContext(ctx).
		Where("responder_id = ?", responderID).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LikeAnswer records userID liking answerID. Liking twice is a no-op; the
// bool reports whether a new like was created.
func LikeAnswer(ctx context.Context, db *gorm.DB, answerID, userID int64) (bool, error) {
	var existing domain.AnswerLike
	err := db.WithContext(ctx).
		Where("answer_id = ? AND user_id = ?", answerID, userID).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}
	l := domain.AnswerLike{AnswerID: answerID, UserID: userID, CreatedAt: time.Now().UTC()}
	if cerr := db.WithContext(ctx).Create(&l).Error; cerr != nil {
		var again domain.AnswerLike
		if rerr := db.WithContext(ctx).
			Where("answer_id = ? AND user_id = ?", answerID, userID).
			First(&again).Error; rerr == nil {
			return false, nil
		}
		return false, cerr
	}
	return true, nil
}

// UnlikeAnswer removes userID's like; absent likes are a no-op.
func UnlikeAnswer(ctx context.Context, db *gorm.DB, answerID, userID int64) error {
	return db.WithContext(ctx).
		Where("answer_id = ? AND user_id = ?", answerID, userID).
		Delete(&domain.AnswerLike{}).Error
}

// LikeCount returns how many likes an answer has.
func LikeCount(ctx context.Context, db *gorm.DB, answerID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AnswerLike{}).
		Where("answer_id = ?", answerID).
		Count(&n).Error
	return n, err
}

// IsLiked reports whether userID has liked the answer.
func IsLiked(ctx context.Context, db *gorm.DB, answerID, userID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AnswerLike{}).
		Where("answer_id = ? AND user_id = ?", answerID, userID).
		Count(&n).Error
	return n > 0, err
}

// CreateComment inserts a comment on an answer.
func CreateComment(ctx context.Context, db *gorm.DB, answerID, authorID int64, content string) (*domain.Comment, error) {
	c := &domain.Comment{
		AnswerID:  answerID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return c, db.WithContext(ctx).Create(c).Error
}

// CreateAnswerReport records a moderation report against an answer.
func CreateAnswerReport(ctx context.Context, db *gorm.DB, answerID, reporterID int64, reason string) (*domain.AnswerReport, error) {
	r := &domain.AnswerReport{
		AnswerID:   answerID,
		ReporterID: reporterID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	return r, db.WithContext(ctx).Create(r).Error
}

// GetComment fetches a comment by ID.
func GetComment(ctx context.Context, db *gorm.DB, id int64) (*domain.Comment, error) {
	var c domain.Comment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments returns an answer's comments oldest first.
func ListComments(ctx context.Context, db *gorm.DB, answerID int64, skip, limit int) ([]domain.Comment, error) {
	var out []domain.Comment
	err := db.WithContext(ctx).
		Where("answer_id = ?", answerID).
		Order("created_at ASC, id ASC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteComment removes a comment authored by authorID. The bool reports
// whether a row matched.
func DeleteComment(ctx context.Context, db *gorm.DB, commentID, authorID int64) (bool, error) {
	res := db.WithContext(ctx).
		Where("id = ? AND author_id = ?", commentID, authorID).
		Delete(&domain.Comment{})
	return res.RowsAffected > 0, res.Error
}
