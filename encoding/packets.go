package encoding

import (
	"io"
)

// MQTT 3.1.1 packet structs and encoders. Each struct has an Encode that
// writes the complete packet, fixed header included, and a matching Parse
// function in decode.go.

// ProtocolName is the only protocol name accepted on CONNECT
const ProtocolName = "MQTT"

// ProtocolLevel is the only protocol level accepted on CONNECT
const ProtocolLevel byte = 4

// MQTT 3.1.1 CONNACK return codes
const (
	ConnectAccepted                    byte = 0x00
	ConnectRefusedUnacceptableProtocol byte = 0x01
	ConnectRefusedIdentifierRejected   byte = 0x02
	ConnectRefusedServerUnavailable    byte = 0x03
	ConnectRefusedBadUsernamePassword  byte = 0x04
	ConnectRefusedNotAuthorized        byte = 0x05
)

// Packet is any MQTT 3.1.1 control packet
type Packet interface {
	Type() PacketType
	Encode(w io.Writer) error
}

// ConnectPacket represents a CONNECT packet
type ConnectPacket struct {
	ProtocolName  string
	ProtocolLevel byte
	CleanSession  bool
	WillFlag      bool
	WillQoS       QoS
	WillRetain    bool
	PasswordFlag  bool
	UsernameFlag  bool
	KeepAlive     uint16
	ClientID      string
	WillTopic     string
	WillPayload   []byte
	Username      string
	Password      []byte
}

// ConnackPacket represents a CONNACK packet
type ConnackPacket struct {
	SessionPresent bool
	ReturnCode     byte
}

// PublishPacket represents a PUBLISH packet
type PublishPacket struct {
	DUP       bool
	QoS       QoS
	Retain    bool
	TopicName string
	PacketID  uint16
	Payload   []byte
}

// PubackPacket represents a PUBACK packet
type PubackPacket struct {
	PacketID uint16
}

// Subscription represents a single topic filter request in SUBSCRIBE
type Subscription struct {
	TopicFilter string
	QoS         QoS
}

// SubscribePacket represents a SUBSCRIBE packet
type SubscribePacket struct {
	PacketID      uint16
	Subscriptions []Subscription
}

// SubackPacket represents a SUBACK packet.
// A return code of 0x80 marks a rejected topic filter.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []byte
}

// UnsubscribePacket represents an UNSUBSCRIBE packet
type UnsubscribePacket struct {
	PacketID     uint16
	TopicFilters []string
}

// UnsubackPacket represents an UNSUBACK packet
type UnsubackPacket struct {
	PacketID uint16
}

// PingreqPacket represents a PINGREQ packet
type PingreqPacket struct{}

// PingrespPacket represents a PINGRESP packet
type PingrespPacket struct{}

// DisconnectPacket represents a DISCONNECT packet
type DisconnectPacket struct{}

func (p *ConnectPacket) Type() PacketType     { return CONNECT }
func (p *ConnackPacket) Type() PacketType     { return CONNACK }
func (p *PublishPacket) Type() PacketType     { return PUBLISH }
func (p *PubackPacket) Type() PacketType      { return PUBACK }
func (p *SubscribePacket) Type() PacketType   { return SUBSCRIBE }
func (p *SubackPacket) Type() PacketType      { return SUBACK }
func (p *UnsubscribePacket) Type() PacketType { return UNSUBSCRIBE }
func (p *UnsubackPacket) Type() PacketType    { return UNSUBACK }
func (p *PingreqPacket) Type() PacketType     { return PINGREQ }
func (p *PingrespPacket) Type() PacketType    { return PINGRESP }
func (p *DisconnectPacket) Type() PacketType  { return DISCONNECT }

// Encode encodes a CONNECT packet
func (p *ConnectPacket) Encode(w io.Writer) error {
	// Variable header: protocol name + level + connect flags + keep alive
	varHeaderLen := 2 + len(p.ProtocolName) + 1 + 1 + 2

	payloadLen := 2 + len(p.ClientID)
	if p.WillFlag {
		payloadLen += 2 + len(p.WillTopic)
		payloadLen += 2 + len(p.WillPayload)
	}
	if p.UsernameFlag {
		payloadLen += 2 + len(p.Username)
	}
	if p.PasswordFlag {
		payloadLen += 2 + len(p.Password)
	}

	fh := FixedHeader{
		Type:            CONNECT,
		RemainingLength: uint32(varHeaderLen + payloadLen),
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	if err := writeUTF8String(w, p.ProtocolName); err != nil {
		return err
	}
	if err := writeByte(w, p.ProtocolLevel); err != nil {
		return err
	}

	var connectFlags byte
	if p.CleanSession {
		connectFlags |= 0x02
	}
	if p.WillFlag {
		connectFlags |= 0x04
		connectFlags |= byte(p.WillQoS) << 3
		if p.WillRetain {
			connectFlags |= 0x20
		}
	}
	if p.PasswordFlag {
		connectFlags |= 0x40
	}
	if p.UsernameFlag {
		connectFlags |= 0x80
	}
	if err := writeByte(w, connectFlags); err != nil {
		return err
	}

	if err := writeTwoByteInt(w, p.KeepAlive); err != nil {
		return err
	}

	if err := writeUTF8String(w, p.ClientID); err != nil {
		return err
	}
	if p.WillFlag {
		if err := writeUTF8String(w, p.WillTopic); err != nil {
			return err
		}
		if err := writeBinaryData(w, p.WillPayload); err != nil {
			return err
		}
	}
	if p.UsernameFlag {
		if err := writeUTF8String(w, p.Username); err != nil {
			return err
		}
	}
	if p.PasswordFlag {
		if err := writeBinaryData(w, p.Password); err != nil {
			return err
		}
	}

	return nil
}

// Encode encodes a CONNACK packet
func (p *ConnackPacket) Encode(w io.Writer) error {
	fh := FixedHeader{
		Type:            CONNACK,
		RemainingLength: 2, // ack flags + return code
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	var ackFlags byte
	if p.SessionPresent {
		ackFlags |= 0x01
	}
	if err := writeByte(w, ackFlags); err != nil {
		return err
	}

	return writeByte(w, p.ReturnCode)
}

// Encode encodes a PUBLISH packet
func (p *PublishPacket) Encode(w io.Writer) error {
	remainingLength := uint32(2 + len(p.TopicName) + len(p.Payload))

	// Packet ID is present only for QoS 1 and 2
	if p.QoS > QoS0 {
		remainingLength += 2
	}

	fh := FixedHeader{
		Type:            PUBLISH,
		RemainingLength: remainingLength,
		DUP:             p.DUP,
		QoS:             p.QoS,
		Retain:          p.Retain,
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	if err := writeUTF8String(w, p.TopicName); err != nil {
		return err
	}

	if p.QoS > QoS0 {
		if err := writeTwoByteInt(w, p.PacketID); err != nil {
			return err
		}
	}

	if len(p.Payload) > 0 {
		_, err := w.Write(p.Payload)
		return err
	}

	return nil
}

// Encode encodes a PUBACK packet
func (p *PubackPacket) Encode(w io.Writer) error {
	fh := FixedHeader{
		Type:            PUBACK,
		RemainingLength: 2,
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	return writeTwoByteInt(w, p.PacketID)
}

// Encode encodes a SUBSCRIBE packet
func (p *SubscribePacket) Encode(w io.Writer) error {
	remainingLength := uint32(2) // Packet ID
	for _, sub := range p.Subscriptions {
		remainingLength += uint32(2 + len(sub.TopicFilter) + 1) // length prefix + filter + QoS byte
	}

	fh := FixedHeader{
		Type:            SUBSCRIBE,
		Flags:           0x02, // Reserved flags must be 0010
		RemainingLength: remainingLength,
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	if err := writeTwoByteInt(w, p.PacketID); err != nil {
		return err
	}

	for _, sub := range p.Subscriptions {
		if err := writeUTF8String(w, sub.TopicFilter); err != nil {
			return err
		}
		if err := writeByte(w, byte(sub.QoS)); err != nil {
			return err
		}
	}

	return nil
}

// Encode encodes a SUBACK packet
func (p *SubackPacket) Encode(w io.Writer) error {
	fh := FixedHeader{
		Type:            SUBACK,
		RemainingLength: uint32(2 + len(p.ReturnCodes)),
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	if err := writeTwoByteInt(w, p.PacketID); err != nil {
		return err
	}

	_, err := w.Write(p.ReturnCodes)
	return err
}

// Encode encodes an UNSUBSCRIBE packet
func (p *UnsubscribePacket) Encode(w io.Writer) error {
	remainingLength := uint32(2) // Packet ID
	for _, topic := range p.TopicFilters {
		remainingLength += uint32(2 + len(topic))
	}

	fh := FixedHeader{
		Type:            UNSUBSCRIBE,
		Flags:           0x02, // Reserved flags must be 0010
		RemainingLength: remainingLength,
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	if err := writeTwoByteInt(w, p.PacketID); err != nil {
		return err
	}

	for _, topic := range p.TopicFilters {
		if err := writeUTF8String(w, topic); err != nil {
			return err
		}
	}

	return nil
}

// Encode encodes an UNSUBACK packet
func (p *UnsubackPacket) Encode(w io.Writer) error {
	fh := FixedHeader{
		Type:            UNSUBACK,
		RemainingLength: 2,
	}
	if err := fh.Encode(w); err != nil {
		return err
	}

	return writeTwoByteInt(w, p.PacketID)
}

// Encode encodes a PINGREQ packet
func (p *PingreqPacket) Encode(w io.Writer) error {
	fh := FixedHeader{Type: PINGREQ}
	return fh.Encode(w)
}

// Encode encodes a PINGRESP packet
func (p *PingrespPacket) Encode(w io.Writer) error {
	fh := FixedHeader{Type: PINGRESP}
	return fh.Encode(w)
}

// Encode encodes a DISCONNECT packet
func (p *DisconnectPacket) Encode(w io.Writer) error {
	fh := FixedHeader{Type: DISCONNECT}
	return fh.Encode(w)
}

func writeByte(w io.Writer, value byte) error {
	_, err := w.Write([]byte{value})
	return err
}

func writeTwoByteInt(w io.Writer, value uint16) error {
	_, err := w.Write([]byte{byte(value >> 8), byte(value)})
	return err
}

func writeUTF8String(w io.Writer, value string) error {
	if len(value) > 0xFFFF {
		return ErrMalformedPacket
	}
	if err := writeTwoByteInt(w, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		_, err := w.Write([]byte(value))
		return err
	}
	return nil
}

func writeBinaryData(w io.Writer, value []byte) error {
	if len(value) > 0xFFFF {
		return ErrMalformedPacket
	}
	if err := writeTwoByteInt(w, uint16(len(value))); err != nil {
		return err
	}
	if len(value) > 0 {
		_, err := w.Write(value)
		return err
	}
	return nil
}
