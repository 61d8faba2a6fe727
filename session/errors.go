package session

import "errors"

var (
	// ErrEmptyClientID indicates an empty client identifier where the
	// protocol requires one (clean session disabled)
	ErrEmptyClientID = errors.New("empty client identifier requires clean session")

	// ErrSessionClosed indicates an operation on a closed session
	ErrSessionClosed = errors.New("session is closed")
)
