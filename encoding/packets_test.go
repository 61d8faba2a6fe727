package encoding

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	decoded, err := ReadPacket(&buf)
	require.NoError(t, err)
	require.Equal(t, p.Type(), decoded.Type())

	return decoded
}

func TestConnectRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet *ConnectPacket
	}{
		{
			name: "minimal_clean_session",
			packet: &ConnectPacket{
				ProtocolName:  ProtocolName,
				ProtocolLevel: ProtocolLevel,
				CleanSession:  true,
				KeepAlive:     60,
				ClientID:      "nas-panel",
			},
		},
		{
			name: "empty_client_id",
			packet: &ConnectPacket{
				ProtocolName:  ProtocolName,
				ProtocolLevel: ProtocolLevel,
				CleanSession:  true,
				KeepAlive:     30,
			},
		},
		{
			name: "with_credentials",
			packet: &ConnectPacket{
				ProtocolName:  ProtocolName,
				ProtocolLevel: ProtocolLevel,
				CleanSession:  true,
				KeepAlive:     120,
				ClientID:      "sensor-1",
				UsernameFlag:  true,
				Username:      "nas",
				PasswordFlag:  true,
				Password:      []byte("secret"),
			},
		},
		{
			name: "with_will",
			packet: &ConnectPacket{
				ProtocolName:  ProtocolName,
				ProtocolLevel: ProtocolLevel,
				CleanSession:  true,
				KeepAlive:     10,
				ClientID:      "sensor-2",
				WillFlag:      true,
				WillQoS:       QoS1,
				WillRetain:    true,
				WillTopic:     "status/sensor-2",
				WillPayload:   []byte("offline"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := roundTrip(t, tt.packet).(*ConnectPacket)
			assert.Equal(t, tt.packet, decoded)
		})
	}
}

func TestParseConnectRejects(t *testing.T) {
	encode := func(p *ConnectPacket) []byte {
		var buf bytes.Buffer
		require.NoError(t, p.Encode(&buf))
		return buf.Bytes()
	}

	t.Run("wrong_protocol_name", func(t *testing.T) {
		raw := encode(&ConnectPacket{
			ProtocolName:  "MQIsdp",
			ProtocolLevel: 3,
			CleanSession:  true,
			ClientID:      "c",
		})
		_, err := ReadPacket(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrInvalidProtocolName)
	})

	t.Run("password_without_username", func(t *testing.T) {
		raw := encode(&ConnectPacket{
			ProtocolName:  ProtocolName,
			ProtocolLevel: ProtocolLevel,
			CleanSession:  true,
			ClientID:      "c",
			PasswordFlag:  true,
			Password:      []byte("p"),
		})
		_, err := ReadPacket(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})

	t.Run("reserved_connect_flag_set", func(t *testing.T) {
		raw := encode(&ConnectPacket{
			ProtocolName:  ProtocolName,
			ProtocolLevel: ProtocolLevel,
			CleanSession:  true,
			ClientID:      "c",
		})
		// Connect flags byte sits right after "MQTT" + level
		raw[2+2+len(ProtocolName)+1] |= 0x01
		_, err := ReadPacket(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})
}

func TestConnackRoundTrip(t *testing.T) {
	for _, code := range []byte{
		ConnectAccepted,
		ConnectRefusedUnacceptableProtocol,
		ConnectRefusedIdentifierRejected,
		ConnectRefusedServerUnavailable,
		ConnectRefusedBadUsernamePassword,
		ConnectRefusedNotAuthorized,
	} {
		decoded := roundTrip(t, &ConnackPacket{ReturnCode: code}).(*ConnackPacket)
		assert.Equal(t, code, decoded.ReturnCode)
		assert.False(t, decoded.SessionPresent)
	}
}

func TestPublishRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet *PublishPacket
	}{
		{
			name: "qos0",
			packet: &PublishPacket{
				TopicName: "nas/panel/data",
				Payload:   []byte(`{"cpu":{"usage":12.5}}`),
			},
		},
		{
			name: "qos0_empty_payload",
			packet: &PublishPacket{
				TopicName: "nas/panel/data",
			},
		},
		{
			name: "qos1_with_packet_id",
			packet: &PublishPacket{
				QoS:       QoS1,
				PacketID:  42,
				TopicName: "nas/panel/data",
				Payload:   []byte("x"),
			},
		},
		{
			name: "qos1_dup_retain",
			packet: &PublishPacket{
				QoS:       QoS1,
				DUP:       true,
				Retain:    true,
				PacketID:  65535,
				TopicName: "a/b/c",
				Payload:   []byte{0x00, 0x01, 0x02},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := roundTrip(t, tt.packet).(*PublishPacket)
			assert.Equal(t, tt.packet.TopicName, decoded.TopicName)
			assert.Equal(t, tt.packet.QoS, decoded.QoS)
			assert.Equal(t, tt.packet.DUP, decoded.DUP)
			assert.Equal(t, tt.packet.Retain, decoded.Retain)
			assert.Equal(t, tt.packet.PacketID, decoded.PacketID)
			assert.Equal(t, len(tt.packet.Payload), len(decoded.Payload))
			if len(tt.packet.Payload) > 0 {
				assert.Equal(t, tt.packet.Payload, decoded.Payload)
			}
		})
	}
}

func TestParsePublishZeroPacketID(t *testing.T) {
	var buf bytes.Buffer
	p := &PublishPacket{QoS: QoS1, PacketID: 1, TopicName: "a"}
	require.NoError(t, p.Encode(&buf))

	raw := buf.Bytes()
	// Zero out the packet identifier
	raw[len(raw)-2] = 0x00
	raw[len(raw)-1] = 0x00

	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidPacketID)
}

func TestSubscribeRoundTrip(t *testing.T) {
	p := &SubscribePacket{
		PacketID: 7,
		Subscriptions: []Subscription{
			{TopicFilter: "nas/panel/data", QoS: QoS1},
			{TopicFilter: "sensors/+/temp", QoS: QoS0},
			{TopicFilter: "alerts/#", QoS: QoS2},
		},
	}

	decoded := roundTrip(t, p).(*SubscribePacket)
	assert.Equal(t, p, decoded)
}

func TestParseSubscribeEmpty(t *testing.T) {
	// Packet ID only, no topic filters
	raw := []byte{0x82, 0x02, 0x00, 0x07}
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestSubackRoundTrip(t *testing.T) {
	p := &SubackPacket{
		PacketID:    7,
		ReturnCodes: []byte{0x00, 0x01, 0x80},
	}

	decoded := roundTrip(t, p).(*SubackPacket)
	assert.Equal(t, p, decoded)
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	p := &UnsubscribePacket{
		PacketID:     9,
		TopicFilters: []string{"nas/panel/data", "sensors/+/temp"},
	}

	decoded := roundTrip(t, p).(*UnsubscribePacket)
	assert.Equal(t, p, decoded)
}

func TestAckRoundTrips(t *testing.T) {
	puback := roundTrip(t, &PubackPacket{PacketID: 3}).(*PubackPacket)
	assert.Equal(t, uint16(3), puback.PacketID)

	unsuback := roundTrip(t, &UnsubackPacket{PacketID: 11}).(*UnsubackPacket)
	assert.Equal(t, uint16(11), unsuback.PacketID)
}

func TestEmptyBodyPackets(t *testing.T) {
	roundTrip(t, &PingreqPacket{})
	roundTrip(t, &PingrespPacket{})
	roundTrip(t, &DisconnectPacket{})
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	// Length-prefixed fields carry a uint16 length; anything longer
	// cannot be framed
	oversized := strings.Repeat("a", 0x10000)

	var buf bytes.Buffer
	err := (&PublishPacket{TopicName: oversized}).Encode(&buf)
	assert.ErrorIs(t, err, ErrMalformedPacket)

	buf.Reset()
	err = (&ConnectPacket{
		ProtocolName:  ProtocolName,
		ProtocolLevel: ProtocolLevel,
		CleanSession:  true,
		ClientID:      "c",
		PasswordFlag:  true,
		UsernameFlag:  true,
		Username:      "nas",
		Password:      []byte(oversized),
	}).Encode(&buf)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestReadPacketRejectsQoS2Flow(t *testing.T) {
	// PUBREL with its reserved flags
	raw := []byte{0x62, 0x02, 0x00, 0x01}
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestParsePublishInvalidTopicUTF8(t *testing.T) {
	// Topic containing a null byte
	raw := []byte{0x30, 0x05, 0x00, 0x03, 'a', 0x00, 'b'}
	_, err := ReadPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrNullCharacter)
}
