// Package services defines the business logic for post management and the
// background publish, retry, and analytics jobs. This file centralizes the
// service-level error values so they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Post-related errors.
var (
	// ErrPostNotFound indicates that the requested post does not exist or is
	// not accessible to the current user.
	ErrPostNotFound = errors.New("post not found")

	// ErrEmptyContent is returned when a request to create a post carries no
	// body text.
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLong is returned when a post body exceeds the configured
	// maximum length.
	ErrContentTooLong = errors.New("content too long")

	// ErrScheduleInPast is returned when a schedule request names a time
	// that has already passed.
	ErrScheduleInPast = errors.New("scheduled time is in the past")

	// ErrNotSchedulable is returned when a post is in a state that cannot
	// transition to scheduled (for example, already published).
	ErrNotSchedulable = errors.New("post cannot be scheduled in its current state")

	// ErrMissingCredential indicates the post's owner has no usable access
	// token on file.
	ErrMissingCredential = errors.New("owner has no access token")
)
