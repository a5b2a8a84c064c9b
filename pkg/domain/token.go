package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "expatdesk/pkg/domain-errors"
)

// AccessToken is the opaque credential that lets a paying customer resume
// their intake without signing in. It is the only key the public API accepts.
type AccessToken string

const (
	minAccessTokenLen = 16
	maxAccessTokenLen = 128
)

// NewAccessToken mints a random token (122 bits of entropy).
func NewAccessToken() AccessToken {
	return AccessToken(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// ParseAccessToken validates a token taken from a URL or request body.
// Only [A-Za-z0-9_-] is accepted so tokens are safe in paths and cache keys.
func ParseAccessToken(s string) (AccessToken, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "access token is required")
	}
	if len(s) < minAccessTokenLen || len(s) > maxAccessTokenLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid access token")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "invalid access token")
		}
	}
	return AccessToken(s), nil
}

func (t AccessToken) String() string { return string(t) }
