package broker

import "errors"

var (
	// ErrBind indicates the listen address could not be bound. Fatal at startup.
	ErrBind = errors.New("failed to bind listen address")

	// ErrBrokerClosed indicates an operation on a stopped broker
	ErrBrokerClosed = errors.New("broker is closed")

	// ErrProtocolViolation indicates a packet that is illegal in the
	// session's current state
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrConnectTimeout indicates no CONNECT arrived within the grace period
	ErrConnectTimeout = errors.New("timed out waiting for CONNECT")

	// ErrSlowConsumer indicates a client whose outbound queue stayed full
	ErrSlowConsumer = errors.New("slow consumer")

	// ErrRetryExhausted indicates a QoS 1 message ran out of retransmit attempts
	ErrRetryExhausted = errors.New("retransmit attempts exhausted")

	// ErrTakenOver indicates the session was displaced by a new connection
	// with the same client ID
	ErrTakenOver = errors.New("session taken over")

	// ErrKeepAliveExpired indicates no packet arrived within 1.5x the
	// negotiated keep-alive window
	ErrKeepAliveExpired = errors.New("keep-alive expired")
)
