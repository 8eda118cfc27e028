package authgate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoCredentials indicates the request carried no Basic-Auth header.
	ErrNoCredentials = errors.New("authorization required")

	// ErrForbidden indicates credentials were presented but did not match
	// any role allowed on the endpoint.
	ErrForbidden = errors.New("forbidden")
)

// RateLimitedError indicates the client/event/username key is blocked.
// Carries the retry hint the transport layer surfaces as a Retry-After.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds the hint up to whole seconds, never below one.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
