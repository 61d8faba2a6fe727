package encoding

import (
	"errors"
	"io"
)

// Decoders for MQTT 3.1.1 packet bodies. Each Parse function consumes exactly
// fh.RemainingLength bytes from the reader and is the inverse of the
// corresponding Encode.

// ReadPacket reads one complete control packet from the reader:
// fixed header first, then the matching body decoder.
func ReadPacket(r io.Reader) (Packet, error) {
	fh, err := ParseFixedHeader(r)
	if err != nil {
		return nil, err
	}

	switch fh.Type {
	case CONNECT:
		return ParseConnect(r, fh)
	case CONNACK:
		return ParseConnack(r, fh)
	case PUBLISH:
		return ParsePublish(r, fh)
	case PUBACK:
		return ParsePuback(r, fh)
	case SUBSCRIBE:
		return ParseSubscribe(r, fh)
	case SUBACK:
		return ParseSuback(r, fh)
	case UNSUBSCRIBE:
		return ParseUnsubscribe(r, fh)
	case UNSUBACK:
		return ParseUnsuback(r, fh)
	case PINGREQ:
		return ParsePingreq(r, fh)
	case PINGRESP:
		return ParsePingresp(r, fh)
	case DISCONNECT:
		return ParseDisconnect(r, fh)
	default:
		// PUBREC/PUBREL/PUBCOMP are not part of the supported QoS surface
		return nil, ErrInvalidType
	}
}

// ParseConnect parses a CONNECT packet body
func ParseConnect(r io.Reader, fh *FixedHeader) (*ConnectPacket, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return nil, err
	}

	p := &ConnectPacket{}
	offset := 0

	p.ProtocolName, offset, err = readUTF8String(body, offset)
	if err != nil {
		return nil, err
	}
	if p.ProtocolName != ProtocolName {
		return nil, ErrInvalidProtocolName
	}

	if offset >= len(body) {
		return nil, ErrUnexpectedEOF
	}
	p.ProtocolLevel = body[offset]
	offset++

	if offset >= len(body) {
		return nil, ErrUnexpectedEOF
	}
	connectFlags := body[offset]
	offset++

	// Reserved bit must be zero per section 3.1.2.3
	if connectFlags&0x01 != 0 {
		return nil, ErrMalformedPacket
	}

	p.CleanSession = connectFlags&0x02 != 0
	p.WillFlag = connectFlags&0x04 != 0
	p.WillQoS = QoS((connectFlags & 0x18) >> 3)
	p.WillRetain = connectFlags&0x20 != 0
	p.PasswordFlag = connectFlags&0x40 != 0
	p.UsernameFlag = connectFlags&0x80 != 0

	if !p.WillFlag && (p.WillQoS != QoS0 || p.WillRetain) {
		return nil, ErrMalformedPacket
	}
	if p.WillFlag && !p.WillQoS.IsValid() {
		return nil, ErrInvalidQoS
	}
	// 3.1.1 forbids password without username
	if p.PasswordFlag && !p.UsernameFlag {
		return nil, ErrMalformedPacket
	}

	p.KeepAlive, offset, err = readTwoByteInt(body, offset)
	if err != nil {
		return nil, err
	}

	p.ClientID, offset, err = readUTF8String(body, offset)
	if err != nil {
		return nil, err
	}

	if p.WillFlag {
		p.WillTopic, offset, err = readUTF8String(body, offset)
		if err != nil {
			return nil, err
		}
		p.WillPayload, offset, err = readBinaryData(body, offset)
		if err != nil {
			return nil, err
		}
	}

	if p.UsernameFlag {
		p.Username, offset, err = readUTF8String(body, offset)
		if err != nil {
			return nil, err
		}
	}

	if p.PasswordFlag {
		p.Password, offset, err = readBinaryData(body, offset)
		if err != nil {
			return nil, err
		}
	}

	if offset != len(body) {
		return nil, ErrMalformedPacket
	}

	return p, nil
}

// ParseConnack parses a CONNACK packet body
func ParseConnack(r io.Reader, fh *FixedHeader) (*ConnackPacket, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return nil, err
	}
	if len(body) != 2 {
		return nil, ErrMalformedPacket
	}

	// Bits 7-1 of the ack flags are reserved
	if body[0]&0xFE != 0 {
		return nil, ErrMalformedPacket
	}

	return &ConnackPacket{
		SessionPresent: body[0]&0x01 != 0,
		ReturnCode:     body[1],
	}, nil
}

// ParsePublish parses a PUBLISH packet body. DUP, QoS and Retain come from
// the fixed header flags.
func ParsePublish(r io.Reader, fh *FixedHeader) (*PublishPacket, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return nil, err
	}

	p := &PublishPacket{
		DUP:    fh.DUP,
		QoS:    fh.QoS,
		Retain: fh.Retain,
	}

	offset := 0
	p.TopicName, offset, err = readUTF8String(body, offset)
	if err != nil {
		return nil, err
	}

	if p.QoS > QoS0 {
		p.PacketID, offset, err = readTwoByteInt(body, offset)
		if err != nil {
			return nil, err
		}
		if p.PacketID == 0 {
			return nil, ErrInvalidPacketID
		}
	}

	// Everything after the variable header is payload; zero length is valid
	p.Payload = body[offset:]

	return p, nil
}

// ParsePuback parses a PUBACK packet body
func ParsePuback(r io.Reader, fh *FixedHeader) (*PubackPacket, error) {
	id, err := readPacketIDBody(r, fh)
	if err != nil {
		return nil, err
	}
	return &PubackPacket{PacketID: id}, nil
}

// ParseSubscribe parses a SUBSCRIBE packet body
func ParseSubscribe(r io.Reader, fh *FixedHeader) (*SubscribePacket, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return nil, err
	}

	p := &SubscribePacket{}
	offset := 0

	p.PacketID, offset, err = readTwoByteInt(body, offset)
	if err != nil {
		return nil, err
	}
	if p.PacketID == 0 {
		return nil, ErrInvalidPacketID
	}

	for offset < len(body) {
		var filter string
		filter, offset, err = readUTF8String(body, offset)
		if err != nil {
			return nil, err
		}

		if offset >= len(body) {
			return nil, ErrUnexpectedEOF
		}
		qos := QoS(body[offset])
		offset++

		if !qos.IsValid() {
			return nil, ErrInvalidQoS
		}

		p.Subscriptions = append(p.Subscriptions, Subscription{
			TopicFilter: filter,
			QoS:         qos,
		})
	}

	// A SUBSCRIBE with no topic filters is a protocol violation
	if len(p.Subscriptions) == 0 {
		return nil, ErrMalformedPacket
	}

	return p, nil
}

// ParseSuback parses a SUBACK packet body
func ParseSuback(r io.Reader, fh *FixedHeader) (*SubackPacket, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return nil, err
	}
	if len(body) < 3 {
		return nil, ErrMalformedPacket
	}

	p := &SubackPacket{}
	p.PacketID, _, err = readTwoByteInt(body, 0)
	if err != nil {
		return nil, err
	}
	p.ReturnCodes = body[2:]

	return p, nil
}

// ParseUnsubscribe parses an UNSUBSCRIBE packet body
func ParseUnsubscribe(r io.Reader, fh *FixedHeader) (*UnsubscribePacket, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return nil, err
	}

	p := &UnsubscribePacket{}
	offset := 0

	p.PacketID, offset, err = readTwoByteInt(body, offset)
	if err != nil {
		return nil, err
	}
	if p.PacketID == 0 {
		return nil, ErrInvalidPacketID
	}

	for offset < len(body) {
		var filter string
		filter, offset, err = readUTF8String(body, offset)
		if err != nil {
			return nil, err
		}
		p.TopicFilters = append(p.TopicFilters, filter)
	}

	if len(p.TopicFilters) == 0 {
		return nil, ErrMalformedPacket
	}

	return p, nil
}

// ParseUnsuback parses an UNSUBACK packet body
func ParseUnsuback(r io.Reader, fh *FixedHeader) (*UnsubackPacket, error) {
	id, err := readPacketIDBody(r, fh)
	if err != nil {
		return nil, err
	}
	return &UnsubackPacket{PacketID: id}, nil
}

// ParsePingreq parses a PINGREQ packet body
func ParsePingreq(r io.Reader, fh *FixedHeader) (*PingreqPacket, error) {
	if fh.RemainingLength != 0 {
		return nil, ErrMalformedPacket
	}
	return &PingreqPacket{}, nil
}

// ParsePingresp parses a PINGRESP packet body
func ParsePingresp(r io.Reader, fh *FixedHeader) (*PingrespPacket, error) {
	if fh.RemainingLength != 0 {
		return nil, ErrMalformedPacket
	}
	return &PingrespPacket{}, nil
}

// ParseDisconnect parses a DISCONNECT packet body
func ParseDisconnect(r io.Reader, fh *FixedHeader) (*DisconnectPacket, error) {
	if fh.RemainingLength != 0 {
		return nil, ErrMalformedPacket
	}
	return &DisconnectPacket{}, nil
}

// readBody reads exactly length bytes from the reader
func readBody(r io.Reader, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// readPacketIDBody handles the common 2-byte packet-id-only body
func readPacketIDBody(r io.Reader, fh *FixedHeader) (uint16, error) {
	body, err := readBody(r, fh.RemainingLength)
	if err != nil {
		return 0, err
	}
	if len(body) != 2 {
		return 0, ErrMalformedPacket
	}

	id := uint16(body[0])<<8 | uint16(body[1])
	if id == 0 {
		return 0, ErrInvalidPacketID
	}
	return id, nil
}

func readTwoByteInt(data []byte, offset int) (uint16, int, error) {
	if len(data[offset:]) < 2 {
		return 0, 0, ErrUnexpectedEOF
	}
	return uint16(data[offset])<<8 | uint16(data[offset+1]), offset + 2, nil
}

func readUTF8String(data []byte, offset int) (string, int, error) {
	length, offset, err := readTwoByteInt(data, offset)
	if err != nil {
		return "", 0, err
	}
	if len(data[offset:]) < int(length) {
		return "", 0, ErrUnexpectedEOF
	}

	raw := data[offset : offset+int(length)]
	if err := ValidateUTF8String(raw); err != nil {
		return "", 0, err
	}

	return string(raw), offset + int(length), nil
}

func readBinaryData(data []byte, offset int) ([]byte, int, error) {
	length, offset, err := readTwoByteInt(data, offset)
	if err != nil {
		return nil, 0, err
	}
	if len(data[offset:]) < int(length) {
		return nil, 0, ErrUnexpectedEOF
	}

	buf := make([]byte, length)
	copy(buf, data[offset:offset+int(length)])

	return buf, offset + int(length), nil
}
