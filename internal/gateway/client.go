// Package gateway defines the publishing gateway boundary: the abstract
// client consumed by the scheduler core and the error taxonomy used to
// decide whether a failed publish is worth retrying.
//
// The concrete implementation (see threads.go) talks to the Threads Graph
// API; the core only depends on the Client interface so tests substitute a
// fake without network access.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a gateway failure. Transient failures are retried by the
// queue; permanent ones exhaust their entry immediately.
type Kind int

const (
	// KindTransient covers connectivity failures and 5xx responses.
	KindTransient Kind = iota
	// KindRateLimited means the platform throttled the call; retryable.
	KindRateLimited
	// KindInvalidCredential means the access token was rejected.
	KindInvalidCredential
	// KindContentRejected means the platform refused the content itself.
	KindContentRejected
)

// String returns the stable lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindContentRejected:
		return "content_rejected"
	default:
		return "transient"
	}
}

// Error is the typed failure returned by gateway calls.
type Error struct {
	Kind   Kind
	Op     string // "create_draft", "commit_draft", "fetch_metrics"
	Status int    // HTTP status when available, 0 for transport errors
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// Permanent reports whether retrying the call can never succeed: the
// credential is bad or the content itself was refused. Rate limits and
// transient failures stay retryable.
func (e *Error) Permanent() bool {
	return e.Kind == KindInvalidCredential || e.Kind == KindContentRejected
}

// IsPermanent reports whether err carries a permanent gateway failure.
// Non-gateway errors are treated as transient.
func IsPermanent(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Permanent()
}

// Metrics is one engagement reading for a published post.
type Metrics struct {
	Views       int64
	Likes       int64
	Comments    int64
	Shares      int64
	Reposts     int64
	Reach       int64
	Impressions int64
}

// Client is the publishing gateway consumed by the core. One client is
// bound to one owner's credential for its lifetime.
type Client interface {
	// CreateDraft uploads assembled content as a remote draft object and
	// returns its identifier.
	CreateDraft(ctx context.Context, content string) (string, error)
	// CommitDraft publishes a previously created draft and returns the
	// identifier of the live remote post.
	CommitDraft(ctx context.Context, draftID string) (string, error)
	// FetchMetrics returns the current engagement counters for a live post.
	FetchMetrics(ctx context.Context, remoteID string) (*Metrics, error)
}

// Factory builds a Client for one owner's access token. The publish
// executor caches the result per owner.
type Factory func(accessToken string) Client

// classifyStatus maps a Graph API HTTP status to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 401 || status == 403:
		return KindInvalidCredential
	case status == 400 || status == 422:
		return KindContentRejected
	default:
		return KindTransient
	}
}
