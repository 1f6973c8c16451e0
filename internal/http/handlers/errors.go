// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses via the fail() helper. These codes give clients a stable,
// machine-readable error taxonomy alongside human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and generic unless explicitly noted.
//   - Generic codes (bad_request, not_found, conflict, ...) mirror common HTTP
//     status semantics.
//   - Domain-specific codes cover business failures a status alone cannot
//     convey (create_failed, schedule_failed, job_failed).
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
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeScheduleFailed   = "schedule_failed"
	ErrCodeJobFailed        = "job_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
