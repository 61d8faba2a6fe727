package session

import (
	"sync"
	"time"

	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/types/message"
)

// State represents the session state
type State byte

const (
	StateConnecting    State = iota // TCP accepted, CONNECT not yet processed
	StateConnected                  // CONNACK sent, normal packet flow
	StateDisconnecting              // Shutdown initiated, draining
	StateClosed                     // Terminal
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session holds the per-client protocol state. Sessions are effectively
// clean: nothing survives a reconnect.
type Session struct {
	mu sync.RWMutex

	ClientID     string
	CleanSession bool
	KeepAlive    uint16 // seconds, 0 disables the idle check
	CreatedAt    time.Time

	// Will message announced in CONNECT, published on abnormal disconnect
	Will *message.Message

	state        State
	lastActivity time.Time

	subscriptions map[string]encoding.QoS      // filter -> granted QoS
	pending       map[uint16]*message.Message  // packetID -> unacked outbound QoS 1
	nextPacketID  uint16
}

// New creates a session in the Connecting state
func New(clientID string, cleanSession bool, keepAlive uint16) *Session {
	now := time.Now()
	return &Session{
		ClientID:      clientID,
		CleanSession:  cleanSession,
		KeepAlive:     keepAlive,
		CreatedAt:     now,
		state:         StateConnecting,
		lastActivity:  now,
		subscriptions: make(map[string]encoding.QoS),
		pending:       make(map[uint16]*message.Message),
		nextPacketID:  1,
	}
}

// State returns the current state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState transitions the session. Closed is terminal.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = state
}

// Touch records inbound activity for keep-alive accounting
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the last inbound packet
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// IdleExpired reports whether the client missed its keep-alive window.
// The grace period is 1.5 times the keep-alive value per section 3.1.2.10.
func (s *Session) IdleExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.KeepAlive == 0 {
		return false
	}

	limit := time.Duration(s.KeepAlive) * time.Second * 3 / 2
	return now.Sub(s.lastActivity) > limit
}

// NextPacketID generates the next packet ID, wrapping at 65535 and
// skipping zero and IDs still awaiting acknowledgment.
func (s *Session) NextPacketID() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		id := s.nextPacketID
		s.nextPacketID++
		if s.nextPacketID == 0 {
			s.nextPacketID = 1
		}

		if _, inFlight := s.pending[id]; !inFlight {
			return id
		}
	}
}

// AddPending records an outbound QoS 1 message awaiting PUBACK
func (s *Session) AddPending(msg *message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[msg.PacketID] = msg
}

// Ack removes a pending message on PUBACK. Returns false for unknown IDs.
func (s *Session) Ack(packetID uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[packetID]; !ok {
		return false
	}
	delete(s.pending, packetID)
	return true
}

// Pending returns a pending message by packet ID
func (s *Session) Pending(packetID uint16) (*message.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.pending[packetID]
	return msg, ok
}

// PendingMessages returns a snapshot of all unacked messages
func (s *Session) PendingMessages() []*message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]*message.Message, 0, len(s.pending))
	for _, msg := range s.pending {
		msgs = append(msgs, msg)
	}
	return msgs
}

// PendingCount returns the number of unacked messages
func (s *Session) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// AddSubscription stores a granted subscription
func (s *Session) AddSubscription(filter string, qos encoding.QoS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[filter] = qos
}

// RemoveSubscription drops a subscription. Returns false if absent.
func (s *Session) RemoveSubscription(filter string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[filter]; !ok {
		return false
	}
	delete(s.subscriptions, filter)
	return true
}

// Subscriptions returns a copy of the granted subscriptions
func (s *Session) Subscriptions() map[string]encoding.QoS {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make(map[string]encoding.QoS, len(s.subscriptions))
	for filter, qos := range s.subscriptions {
		subs[filter] = qos
	}
	return subs
}

// TakeWill returns the will message and clears it, so it is published at
// most once
func (s *Session) TakeWill() *message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	will := s.Will
	s.Will = nil
	return will
}

// ClearWill drops the will message without publishing (normal DISCONNECT)
func (s *Session) ClearWill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Will = nil
}
