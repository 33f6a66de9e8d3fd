package domain

import "errors"

// Token verification taxonomy. Handlers collapse all of these into a generic
// 401; the concrete reason is only ever logged.
var (
	ErrUnauthenticated      = errors.New("bearer token required")
	ErrMalformedToken       = errors.New("missing key ID in token")
	ErrUnknownKey           = errors.New("key not found in signing key set")
	ErrInvalidToken         = errors.New("token verification failed")
	ErrIncompleteIdentity   = errors.New("incomplete user info in token")
	ErrKeySourceUnavailable = errors.New("signing key source unavailable")
)

var (
	// ErrConnectionGone marks a delivery target that no longer exists at the
	// transport. Triggers pruning, never surfaces as a failure.
	ErrConnectionGone = errors.New("connection gone")

	// ErrDeliveryFailed marks a single failed delivery attempt.
	ErrDeliveryFailed = errors.New("delivery failed")
)

// ErrInvalidScore rejects submissions outside the accepted range.
var ErrInvalidScore = errors.New("score must be a non-negative number")
