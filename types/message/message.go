package message

import (
	"time"

	"github.com/naspanel/nasmon/encoding"
)

// Message is the broker-internal representation of an application message.
// It flows from inbound PUBLISH through the router into per-session
// delivery state.
type Message struct {
	Topic         string
	Payload       []byte
	QoS           encoding.QoS
	Retain        bool
	DUP           bool
	PacketID      uint16
	CreatedAt     time.Time
	AttemptCount  int
	LastAttemptAt time.Time
}

// New creates a message with the creation timestamp set
func New(topic string, payload []byte, qos encoding.QoS, retain bool) *Message {
	return &Message{
		Topic:     topic,
		Payload:   payload,
		QoS:       qos,
		Retain:    retain,
		CreatedAt: time.Now(),
	}
}

// Clone returns a copy of the message with its own payload buffer.
// Delivery state (PacketID, DUP, AttemptCount) is per-subscriber and
// starts fresh on the clone.
func (m *Message) Clone() *Message {
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)

	return &Message{
		Topic:     m.Topic,
		Payload:   payload,
		QoS:       m.QoS,
		Retain:    m.Retain,
		CreatedAt: m.CreatedAt,
	}
}

// MarkAttempt records a delivery attempt. Every attempt after the first
// sets the DUP flag for retransmission.
func (m *Message) MarkAttempt() {
	m.AttemptCount++
	m.LastAttemptAt = time.Now()
	if m.AttemptCount > 1 {
		m.DUP = true
	}
}
