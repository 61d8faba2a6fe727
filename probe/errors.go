package probe

import "errors"

var (
	// ErrUnknownKind indicates an unrecognized probe type in a declaration
	ErrUnknownKind = errors.New("unknown probe kind")

	// ErrUnknownTransform indicates a transform outside the declared set
	ErrUnknownTransform = errors.New("unknown transform")

	// ErrMissingField indicates a probe declaration without its required
	// type-specific field
	ErrMissingField = errors.New("missing required field")

	// ErrCommandFailed indicates a command probe whose process exited non-zero
	ErrCommandFailed = errors.New("command failed")

	// ErrCommandTimeout indicates a command probe that exceeded its deadline
	ErrCommandTimeout = errors.New("command timed out")

	// ErrEnvNotSet indicates an env probe with no value and no default
	ErrEnvNotSet = errors.New("environment variable not set")

	// ErrNoMatch indicates a regex-extract transform that matched nothing
	ErrNoMatch = errors.New("regex matched nothing")

	// ErrDuplicateProbe indicates two probes registered under one name
	ErrDuplicateProbe = errors.New("duplicate probe name")
)
