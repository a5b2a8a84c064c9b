// Package models holds the rate limiting vocabulary shared by stores and
// middleware.
package models

import (
	"time"
)

// EndpointClass groups routes that share a budget.
type EndpointClass string

const (
	// ClassToken covers routes addressed by a review access token.
	ClassToken EndpointClass = "token"
	// ClassCheckout covers the checkout exchange and its webhook.
	ClassCheckout EndpointClass = "checkout"
)

// Policy is a request budget over a sliding window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// PerMinute builds a one-minute policy.
func PerMinute(limit int) Policy {
	return Policy{Limit: limit, Window: time.Minute}
}

// Key namespaces a bucket by class and caller.
func Key(class EndpointClass, ip string) string {
	return "ratelimit:" + string(class) + ":" + ip
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 1
	}
	secs := int(wait / time.Second)
	if wait%time.Second != 0 {
		secs++
	}
	return secs
}
