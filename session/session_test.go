package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naspanel/nasmon/encoding"
	"github.com/naspanel/nasmon/types/message"
)

func TestSessionStateTransitions(t *testing.T) {
	s := New("c1", true, 60)
	assert.Equal(t, StateConnecting, s.State())

	s.SetState(StateConnected)
	assert.Equal(t, StateConnected, s.State())

	s.SetState(StateClosed)
	assert.Equal(t, StateClosed, s.State())

	// Closed is terminal
	s.SetState(StateConnected)
	assert.Equal(t, StateClosed, s.State())
}

func TestNextPacketIDSkipsInFlight(t *testing.T) {
	s := New("c1", true, 0)

	id1 := s.NextPacketID()
	assert.Equal(t, uint16(1), id1)

	s.AddPending(&message.Message{PacketID: 2, Topic: "a"})

	// ID 2 is in flight, generator must skip it
	id2 := s.NextPacketID()
	assert.Equal(t, uint16(3), id2)
}

func TestNextPacketIDWrapsSkippingZero(t *testing.T) {
	s := New("c1", true, 0)
	s.nextPacketID = 65535

	assert.Equal(t, uint16(65535), s.NextPacketID())
	assert.Equal(t, uint16(1), s.NextPacketID(), "wrap must skip zero")
}

func TestPendingAck(t *testing.T) {
	s := New("c1", true, 0)

	msg := &message.Message{PacketID: 5, Topic: "a", QoS: encoding.QoS1}
	s.AddPending(msg)
	assert.Equal(t, 1, s.PendingCount())

	got, ok := s.Pending(5)
	require.True(t, ok)
	assert.Equal(t, msg, got)

	assert.True(t, s.Ack(5))
	assert.Zero(t, s.PendingCount())
	assert.False(t, s.Ack(5), "ack for unknown ID")
}

func TestIdleExpired(t *testing.T) {
	s := New("c1", true, 10)
	now := time.Now()

	assert.False(t, s.IdleExpired(now))
	assert.False(t, s.IdleExpired(now.Add(14*time.Second)), "within 1.5x keep-alive")
	assert.True(t, s.IdleExpired(now.Add(16*time.Second)), "past 1.5x keep-alive")

	noKeepAlive := New("c2", true, 0)
	assert.False(t, noKeepAlive.IdleExpired(now.Add(time.Hour)), "keep-alive 0 disables the check")
}

func TestSubscriptionsSnapshot(t *testing.T) {
	s := New("c1", true, 0)
	s.AddSubscription("a/b", encoding.QoS1)
	s.AddSubscription("c/#", encoding.QoS0)

	subs := s.Subscriptions()
	assert.Len(t, subs, 2)
	assert.Equal(t, encoding.QoS1, subs["a/b"])

	assert.True(t, s.RemoveSubscription("a/b"))
	assert.False(t, s.RemoveSubscription("a/b"))
	assert.Len(t, s.Subscriptions(), 1)

	// Snapshot is independent of later mutations
	assert.Len(t, subs, 2)
}

func TestTakeWill(t *testing.T) {
	s := New("c1", true, 0)
	s.Will = message.New("status/c1", []byte("offline"), encoding.QoS0, false)

	will := s.TakeWill()
	require.NotNil(t, will)
	assert.Equal(t, "status/c1", will.Topic)
	assert.Nil(t, s.TakeWill(), "will is published at most once")
}

func TestManagerTakeOver(t *testing.T) {
	m := NewManager()

	first := New("dup", true, 0)
	assert.Nil(t, m.Register(first))

	second := New("dup", true, 0)
	prev := m.Register(second)
	require.NotNil(t, prev)
	assert.Same(t, first, prev)

	// The displaced session must not unregister its successor
	m.Remove(first)
	current, ok := m.Get("dup")
	require.True(t, ok)
	assert.Same(t, second, current)

	m.Remove(second)
	assert.Zero(t, m.Count())
}

func TestManagerGenerateClientID(t *testing.T) {
	m := NewManager()

	id1 := m.GenerateClientID()
	id2 := m.GenerateClientID()

	assert.NotEqual(t, id1, id2)
	assert.Contains(t, id1, "auto-")
	assert.LessOrEqual(t, len(id1), 23, "generated IDs stay within the 3.1.1 server-compatibility limit")
}
