package config

import "errors"

var (
	// ErrInvalidConfig indicates configuration that failed validation.
	// Fatal at startup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoAddress indicates no non-loopback IPv4 address could be found
	// for ip: auto
	ErrNoAddress = errors.New("no non-loopback IPv4 address found")
)
