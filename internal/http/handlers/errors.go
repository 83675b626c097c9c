// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These symbolic codes are mapped into the error envelope by fail(). They
// give clients a stable, machine-readable taxonomy alongside the
// human-readable message: generic codes mirror HTTP status semantics, while
// domain codes cover outcomes a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeBlocked          = "blocked"
	ErrCodeOnlyFollowers    = "only_followers"
	ErrCodeBadCursor        = "bad_cursor"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
