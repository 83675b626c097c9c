// Package services defines the business logic for messaging, notifications,
// questions, and user relationships. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Messaging errors.
var (
	// ErrConversationNotFound indicates that the conversation does not exist
	// or the current user is not one of its participants.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates that the message does not exist or is not
	// accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrSelfConversation is returned when a user attempts to open a
	// conversation with themselves.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")

	// ErrBlocked is returned when a block in either direction forbids the
	// interaction.
	ErrBlocked = errors.New("interaction not allowed between these users")

	// ErrEmptyContent is returned when message or post content is empty after
	// trimming.
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLong is returned when content exceeds the configured rune
	// limit.
	ErrContentTooLong = errors.New("content too long")
)

// User and relationship errors.
var (
	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfFollow is returned when a user attempts to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")

	// ErrUsernameTaken is returned on registration when the username or email
	// already exists.
	ErrUsernameTaken = errors.New("username or email already taken")

	// ErrBadCredentials is returned when authentication fails. It is a single
	// error for both unknown user and wrong password.
	ErrBadCredentials = errors.New("invalid username or password")
)

// Question and answer errors.
var (
	// ErrQuestionNotFound indicates that the question does not exist or is not
	// visible to the current user.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrAnswerNotFound indicates that the answer does not exist.
	ErrAnswerNotFound = errors.New("answer not found")

	// ErrCommentNotFound indicates that the comment does not exist or is not
	// deletable by the current user.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrNotAuthorized is returned when the current user may not perform the
	// operation on the target resource.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrOnlyFollowers is returned when the receiver only accepts questions
	// from their followers.
	ErrOnlyFollowers = errors.New("receiver only accepts questions from followers")
)

// Notification errors.
var (
	// ErrNotificationNotFound indicates that the notification does not exist
	// or does not belong to the current user.
	ErrNotificationNotFound = errors.New("notification not found")
)
