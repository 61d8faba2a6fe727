package encoding

import "errors"

var (
	// ErrVariableByteIntegerTooLarge indicates the value exceeds the maximum encodable value (268,435,455)
	ErrVariableByteIntegerTooLarge = errors.New("variable byte integer value exceeds maximum (268,435,455)")

	// ErrMalformedVariableByteInteger indicates invalid variable byte integer encoding
	ErrMalformedVariableByteInteger = errors.New("malformed variable byte integer")

	// ErrUnexpectedEOF indicates unexpected end of input while reading
	ErrUnexpectedEOF = errors.New("unexpected end of input")

	ErrInvalidType         = errors.New("invalid packet type")
	ErrInvalidFlags        = errors.New("invalid flags for packet type")
	ErrInvalidQoS          = errors.New("invalid QoS level")
	ErrInvalidReservedType = errors.New("reserved packet type not allowed")

	// ErrInvalidProtocolName indicates a CONNECT protocol name other than "MQTT"
	ErrInvalidProtocolName = errors.New("invalid protocol name")

	// ErrInvalidProtocolLevel indicates a CONNECT protocol level other than 4
	ErrInvalidProtocolLevel = errors.New("unacceptable protocol level")

	// ErrInvalidPacketID indicates a zero packet identifier where one is required
	ErrInvalidPacketID = errors.New("packet identifier must be non-zero")

	// ErrMalformedPacket indicates a structurally invalid packet body
	ErrMalformedPacket = errors.New("malformed packet")

	ErrInvalidUTF8           = errors.New("invalid UTF-8 encoding")
	ErrNullCharacter         = errors.New("UTF-8 string contains null character")
	ErrSurrogateCodePoint    = errors.New("UTF-8 string contains surrogate code point")
	ErrNonCharacterCodePoint = errors.New("UTF-8 string contains non-character code point")
)
