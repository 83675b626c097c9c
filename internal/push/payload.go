package push

import "github.com/iwonder/iwonder-backend/internal/domain"

// Sender is the slim author view embedded in pushed messages.
type Sender struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// DirectMessageEvent is the envelope pushed to both participants when a
// message is sent. The sender receives it too, so other open tabs or devices
// of the same account stay in sync.
type DirectMessageEvent struct {
	Type           string               `json:"type"` // always "dm"
	ConversationID int64                `json:"conversation_id"`
	Message        domain.DirectMessage `json:"message"`
	Sender         Sender               `json:"sender"`
}

// NotificationEvent is the envelope pushed when a notification is created.
type NotificationEvent struct {
	Type         string              `json:"type"` // always "notification"
	Notification domain.Notification `json:"notification"`
}

// NewDirectMessageEvent builds the dm envelope for one persisted message.
func NewDirectMessageEvent(msg domain.DirectMessage, sender domain.User) DirectMessageEvent {
	return DirectMessageEvent{
		Type:           "dm",
		ConversationID: msg.ConversationID,
		Message:        msg,
		Sender: Sender{
			ID:        sender.ID,
			Username:  sender.Username,
			AvatarURL: sender.AvatarURL,
		},
	}
}

// NewNotificationEvent builds the notification envelope.
func NewNotificationEvent(n domain.Notification) NotificationEvent {
	return NotificationEvent{Type: "notification", Notification: n}
}
