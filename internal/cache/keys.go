package cache

import "fmt"

// Key builders. Every cached read has a fully qualified key here and, where a
// family of keys must be invalidated together, a matching prefix builder.
// Message keys embed every pagination input so distinct pages never collide.

// ConversationsKey caches a user's conversation list.
func ConversationsKey(userID int64) string {
	return fmt.Sprintf("conversations:%d", userID)
}

// MessagesKey caches one page of a conversation. cursor is the raw wire-form
// cursor or empty for offset mode; markRead distinguishes the read-marking
// variant so it is never served from a cache fill that skipped the update.
func MessagesKey(conversationID int64, skip, limit int, cursor string, markRead bool) string {
	mr := 0
	if markRead {
		mr = 1
	}
	return fmt.Sprintf("messages:%d:%d:%d:%s:%d", conversationID, skip, limit, cursor, mr)
}

// MessagesPrefix matches every cached page of a conversation.
func MessagesPrefix(conversationID int64) string {
	return fmt.Sprintf("messages:%d:", conversationID)
}

// NotificationsKey caches one page of a user's notification list.
func NotificationsKey(userID int64, skip, limit int) string {
	return fmt.Sprintf("notifications:%d:%d:%d", userID, skip, limit)
}

// NotificationsPrefix matches every cached notification page of a user.
func NotificationsPrefix(userID int64) string {
	return fmt.Sprintf("notifications:%d:", userID)
}

// FeedKey caches one page of a user's answer feed.
func FeedKey(userID int64, skip, limit int) string {
	return fmt.Sprintf("feed:%d:%d:%d", userID, skip, limit)
}

// FeedPrefix matches every cached feed page of a user.
func FeedPrefix(userID int64) string {
	return fmt.Sprintf("feed:%d:", userID)
}

// UserAnswersKey caches one page of a user's published answers.
func UserAnswersKey(userID int64, skip, limit int) string {
	return fmt.Sprintf("user_answers:%d:%d:%d", userID, skip, limit)
}

// UserAnswersPrefix matches every cached answers page of a user.
func UserAnswersPrefix(userID int64) string {
	return fmt.Sprintf("user_answers:%d:", userID)
}

// QuestionsReceivedKey caches one page of a user's unanswered inbox.
func QuestionsReceivedKey(userID int64, skip, limit int) string {
	return fmt.Sprintf("questions_received:%d:%d:%d", userID, skip, limit)
}

// QuestionsReceivedPrefix matches every cached inbox page of a user.
func QuestionsReceivedPrefix(userID int64) string {
	return fmt.Sprintf("questions_received:%d:", userID)
}
