// Package domain defines the persistence models of the iWonder backend:
// users and their social graph, two-party direct-message conversations,
// per-message reactions, notifications, and the question/answer content
// types. These types are mapped with GORM and form the core data layer.
package domain

import "time"

// Notification type tags. Grouping treats notifications as "the same event
// recurring" only when both the tag and the content text match exactly.
const (
	NotificationTypeInfo     = "info"
	NotificationTypeQuestion = "question"
	NotificationTypeFollow   = "follow"
	NotificationTypeLike     = "like"
	NotificationTypeComment  = "comment"
)

// User is a registered account. Credential material (PasswordHash) is never
// serialized; the messaging core only ever reads id, username and avatar.
type User struct {
	ID                  int64     `json:"id"         gorm:"primaryKey"`
	Username            string    `json:"username"   gorm:"size:64;uniqueIndex;not null"`
	Email               string    `json:"email"      gorm:"size:255;uniqueIndex;not null"`
	PasswordHash        string    `json:"-"          gorm:"size:128;not null"`
	Bio                 string    `json:"bio"        gorm:"type:text"`
	AvatarURL           string    `json:"avatar_url" gorm:"size:512"`
	OnlyFollowersCanAsk bool      `json:"only_followers_can_ask"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Follow is a directed edge in the social graph. At most one edge exists per
// (follower, followee) pair.
type Follow struct {
	ID         int64     `json:"id"          gorm:"primaryKey"`
	FollowerID int64     `json:"follower_id" gorm:"not null;index;uniqueIndex:ux_follow_pair,priority:1"`
	FolloweeID int64     `json:"followee_id" gorm:"column:followee_id;not null;index;uniqueIndex:ux_follow_pair,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Follow.
func (Follow) TableName() string { return "follows" }

// UserBlock records that blocker no longer wants contact from blocked.
// Blocking in either direction forbids new conversations and messages
// between the pair.
type UserBlock struct {
	ID        int64     `json:"id"         gorm:"primaryKey"`
	BlockerID int64     `json:"blocker_id" gorm:"not null;index;uniqueIndex:ux_block_pair,priority:1"`
	BlockedID int64     `json:"blocked_id" gorm:"not null;index;uniqueIndex:ux_block_pair,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for UserBlock.
func (UserBlock) TableName() string { return "user_blocks" }

// Conversation is a two-party direct-message thread. The participant pair is
// canonicalized so that User1ID < User2ID always holds; together with the
// unique index this guarantees at most one row per unordered pair, no matter
// which side starts the conversation.
type Conversation struct {
	ID        int64     `json:"id"       gorm:"primaryKey"`
	User1ID   int64     `json:"user1_id" gorm:"not null;index;uniqueIndex:ux_conversation_pair,priority:1"`
	User2ID   int64     `json:"user2_id" gorm:"not null;index;uniqueIndex:ux_conversation_pair,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Other returns the participant that is not userID, and whether userID is a
// participant at all. Callers use the second return to authorize access.
func (c Conversation) Other(userID int64) (int64, bool) {
	switch userID {
	case c.User1ID:
		return c.User2ID, true
	case c.User2ID:
		return c.User1ID, true
	default:
		return 0, false
	}
}

// DirectMessage is one message inside a conversation. Pagination orders rows
// by (created_at, id) ascending; the id breaks timestamp ties so cursor
// paging never skips or repeats a row.
type DirectMessage struct {
	ID               int64     `json:"id"              gorm:"primaryKey"`
	ConversationID   int64     `json:"conversation_id" gorm:"not null;index:idx_conv_messages,priority:1"`
	SenderID         int64     `json:"sender_id"       gorm:"not null;index"`
	ReceiverID       int64     `json:"receiver_id"     gorm:"not null;index"`
	ReplyToMessageID *int64    `json:"reply_to_message_id,omitempty"`
	Content          string    `json:"content"         gorm:"type:text;not null"`
	IsRead           bool      `json:"is_read"         gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"      gorm:"index:idx_conv_messages,priority:2"`
}

// TableName returns the database table name for DirectMessage.
func (DirectMessage) TableName() string { return "direct_messages" }

// MessageReaction is a (message, user, emoji) triple. The unique index makes
// the triple a set membership: adding twice is a no-op, as is removing a
// reaction that does not exist.
type MessageReaction struct {
	ID        int64     `json:"id"         gorm:"primaryKey"`
	MessageID int64     `json:"message_id" gorm:"not null;index;uniqueIndex:ux_reaction_triple,priority:1"`
	UserID    int64     `json:"user_id"    gorm:"not null;uniqueIndex:ux_reaction_triple,priority:2"`
	Emoji     string    `json:"emoji"      gorm:"size:32;not null;uniqueIndex:ux_reaction_triple,priority:3"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for MessageReaction.
func (MessageReaction) TableName() string { return "message_reactions" }

// Notification is an immutable event record for a user; only the read flag
// ever changes. Display-time grouping by (type, content) is computed on
// read and never stored.
type Notification struct {
	ID            int64     `json:"id"         gorm:"primaryKey"`
	UserID        int64     `json:"user_id"    gorm:"not null;index"`
	Content       string    `json:"content"    gorm:"type:text;not null"`
	Type          string    `json:"notification_type" gorm:"column:notification_type;size:32;not null;default:'info'"`
	RelatedUserID *int64    `json:"related_user_id,omitempty"`
	RelatedItemID *int64    `json:"related_item_id,omitempty"`
	IsRead        bool      `json:"is_read"    gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Question is asked by one user to another. Anonymous questions hide the
// asker at display time only; the row always records it.
type Question struct {
	ID         int64     `json:"id"          gorm:"primaryKey"`
	AskerID    int64     `json:"asker_id"    gorm:"not null;index"`
	ReceiverID int64     `json:"receiver_id" gorm:"not null;index"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	Anonymous  bool      `json:"anonymous"   gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index"`
}

// TableName returns the database table name for Question.
func (Question) TableName() string { return "questions" }

// Answer is the receiver's public reply to a question. Answers are what the
// follower feed is built from.
type Answer struct {
	ID          int64     `json:"id"           gorm:"primaryKey"`
	QuestionID  int64     `json:"question_id"  gorm:"not null;index"`
	ResponderID int64     `json:"responder_id" gorm:"column:responder_id;not null;index"`
	Content     string    `json:"content"      gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index"`
}

// TableName returns the database table name for Answer.
func (Answer) TableName() string { return "answers" }

// AnswerLike is a (answer, user) pair; at most one like per user per answer.
type AnswerLike struct {
	ID        int64     `json:"id"        gorm:"primaryKey"`
	AnswerID  int64     `json:"answer_id" gorm:"not null;index;uniqueIndex:ux_like_pair,priority:1"`
	UserID    int64     `json:"user_id"   gorm:"not null;uniqueIndex:ux_like_pair,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for AnswerLike.
func (AnswerLike) TableName() string { return "answer_likes" }

// Comment is a user comment on an answer.
type Comment struct {
	ID        int64     `json:"id"        gorm:"primaryKey"`
	AnswerID  int64     `json:"answer_id" gorm:"not null;index"`
	AuthorID  int64     `json:"author_id" gorm:"column:author_id;not null;index"`
	Content   string    `json:"content"   gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string { return "comments" }

// AnswerReport flags an answer for moderation. Reports are append-only;
// review happens out of band.
type AnswerReport struct {
	ID         int64     `json:"id"          gorm:"primaryKey"`
	AnswerID   int64     `json:"answer_id"   gorm:"not null;index"`
	ReporterID int64     `json:"reporter_id" gorm:"not null;index"`
	Reason     string    `json:"reason"      gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for AnswerReport.
func (AnswerReport) TableName() string { return "answer_reports" }
