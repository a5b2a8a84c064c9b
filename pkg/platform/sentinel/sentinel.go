package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: no record for the key (token, session, booking uid)
//   - ErrAlreadyUsed: a unique key (access token, checkout session) is taken
//   - ErrInvalidState: record is in the wrong state for the write
//   - ErrUnavailable: backing service is temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
