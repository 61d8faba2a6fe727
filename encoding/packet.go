package encoding

import (
	"io"
)

// PacketType represents MQTT control packet types
type PacketType byte

const (
	Reserved    PacketType = 0
	CONNECT     PacketType = 1
	CONNACK     PacketType = 2
	PUBLISH     PacketType = 3
	PUBACK      PacketType = 4
	PUBREC      PacketType = 5
	PUBREL      PacketType = 6
	PUBCOMP     PacketType = 7
	SUBSCRIBE   PacketType = 8
	SUBACK      PacketType = 9
	UNSUBSCRIBE PacketType = 10
	UNSUBACK    PacketType = 11
	PINGREQ     PacketType = 12
	PINGRESP    PacketType = 13
	DISCONNECT  PacketType = 14
)

// QoS levels
type QoS byte

const (
	QoS0 QoS = 0 // At most once
	QoS1 QoS = 1 // At least once
	QoS2 QoS = 2 // Exactly once
)

// IsValid returns true if the QoS level is valid (0, 1, or 2)
func (q QoS) IsValid() bool {
	return q <= QoS2
}

// FixedHeader represents the MQTT fixed header
type FixedHeader struct {
	Type            PacketType
	Flags           byte
	RemainingLength uint32

	// PUBLISH-specific flags (decoded from Flags field)
	DUP    bool
	QoS    QoS
	Retain bool
}

// ParseFixedHeader parses the MQTT 3.1.1 fixed header from a reader.
// This function aims for zero allocations by reusing a single-byte buffer internally.
func ParseFixedHeader(r io.Reader) (*FixedHeader, error) {
	header := &FixedHeader{}

	var firstByte [1]byte
	if _, err := io.ReadFull(r, firstByte[:]); err != nil {
		if err == io.EOF {
			return nil, ErrUnexpectedEOF
		}
		return nil, err
	}

	// Packet type lives in bits 7-4
	header.Type = PacketType(firstByte[0] >> 4)

	// Types 0 and 15 are reserved in MQTT 3.1.1
	if header.Type == Reserved {
		return nil, ErrInvalidReservedType
	}
	if header.Type > DISCONNECT {
		return nil, ErrInvalidType
	}

	// Flags live in bits 3-0
	header.Flags = firstByte[0] & 0x0F

	if header.Type == PUBLISH {
		header.DUP = (header.Flags & 0x08) != 0
		header.QoS = QoS((header.Flags & 0x06) >> 1)
		header.Retain = (header.Flags & 0x01) != 0

		// QoS 3 is malformed
		if !header.QoS.IsValid() {
			return nil, ErrInvalidQoS
		}

		// DUP is only defined for QoS > 0
		if header.DUP && header.QoS == QoS0 {
			return nil, ErrInvalidFlags
		}
	} else {
		if err := validateFlags(header.Type, header.Flags); err != nil {
			return nil, err
		}
	}

	remainingLength, err := DecodeVariableByteInteger(r)
	if err != nil {
		return nil, err
	}
	header.RemainingLength = remainingLength

	return header, nil
}

// Encode writes the fixed header to w: packet type, flags and remaining length.
// For PUBLISH headers the flags are rebuilt from DUP/QoS/Retain.
func (h *FixedHeader) Encode(w io.Writer) error {
	if h.Type == Reserved || h.Type > DISCONNECT {
		return ErrInvalidType
	}

	flags := h.Flags
	if h.Type == PUBLISH {
		flags = h.BuildPublishFlags()
	}

	if err := writeByte(w, byte(h.Type)<<4|flags&0x0F); err != nil {
		return err
	}

	encoded, err := EncodeVariableByteInteger(h.RemainingLength)
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// BuildPublishFlags assembles the PUBLISH flag nibble from DUP, QoS and Retain
func (h *FixedHeader) BuildPublishFlags() byte {
	var flags byte
	if h.DUP {
		flags |= 0x08
	}
	flags |= byte(h.QoS) << 1
	if h.Retain {
		flags |= 0x01
	}
	return flags
}

// validateFlags checks if flags are valid for the given packet type
// Per MQTT 3.1.1 specification section 2.2.2
func validateFlags(tp PacketType, flags byte) error {
	expectedFlags := map[PacketType]byte{
		CONNECT:     0x00,
		CONNACK:     0x00,
		PUBACK:      0x00,
		PUBREC:      0x00,
		PUBREL:      0x02, // Reserved bits must be 0010
		PUBCOMP:     0x00,
		SUBSCRIBE:   0x02, // Reserved bits must be 0010
		SUBACK:      0x00,
		UNSUBSCRIBE: 0x02, // Reserved bits must be 0010
		UNSUBACK:    0x00,
		PINGREQ:     0x00,
		PINGRESP:    0x00,
		DISCONNECT:  0x00,
	}

	if expected, ok := expectedFlags[tp]; ok {
		if flags != expected {
			return ErrInvalidFlags
		}
	}

	return nil
}

// String returns human-readable packet type name
func (t PacketType) String() string {
	names := [15]string{
		Reserved:    "RESERVED",
		CONNECT:     "CONNECT",
		CONNACK:     "CONNACK",
		PUBLISH:     "PUBLISH",
		PUBACK:      "PUBACK",
		PUBREC:      "PUBREC",
		PUBREL:      "PUBREL",
		PUBCOMP:     "PUBCOMP",
		SUBSCRIBE:   "SUBSCRIBE",
		SUBACK:      "SUBACK",
		UNSUBSCRIBE: "UNSUBSCRIBE",
		UNSUBACK:    "UNSUBACK",
		PINGREQ:     "PINGREQ",
		PINGRESP:    "PINGRESP",
		DISCONNECT:  "DISCONNECT",
	}

	if t <= DISCONNECT {
		return names[t]
	}
	return "UNKNOWN"
}

// String returns human-readable QoS level
func (q QoS) String() string {
	switch q {
	case QoS0:
		return "QoS0"
	case QoS1:
		return "QoS1"
	case QoS2:
		return "QoS2"
	default:
		return "INVALID"
	}
}
