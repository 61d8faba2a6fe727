package encoding

import (
	"unicode/utf8"
)

// ValidateUTF8String validates a UTF-8 encoded string according to MQTT 3.1.1
// section 1.5.3. UTF-8 Encoded Strings must:
// - Be valid UTF-8 as defined in RFC 3629
// - Not include null character U+0000
// - Not include code points between U+D800 and U+DFFF (UTF-16 surrogates)
// - Should not include non-character code points such as U+FFFE and U+FFFF
func ValidateUTF8String(data []byte) error {
	// Quick check for null bytes
	for _, b := range data {
		if b == 0 {
			return ErrNullCharacter
		}
	}

	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}

	i := 0
	for i < len(data) {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return ErrInvalidUTF8
		}

		if err := validateCodePoint(r); err != nil {
			return err
		}

		i += size
	}

	return nil
}

// validateCodePoint checks if a Unicode code point is allowed in MQTT UTF-8 strings
func validateCodePoint(r rune) error {
	// U+0000 null character
	if r == 0x0000 {
		return ErrNullCharacter
	}

	// U+D800 to U+DFFF are UTF-16 surrogates (invalid in UTF-8)
	if r >= 0xD800 && r <= 0xDFFF {
		return ErrSurrogateCodePoint
	}

	// U+nFFFE and U+nFFFF are non-characters in every plane
	if r != 0x10FFFF && ((r&0xFFFF) == 0xFFFE || (r&0xFFFF) == 0xFFFF) {
		return ErrNonCharacterCodePoint
	}

	// U+FDD0 to U+FDEF are also non-characters
	if r >= 0xFDD0 && r <= 0xFDEF {
		return ErrNonCharacterCodePoint
	}

	return nil
}

// IsValidUTF8String is a convenience function that returns true if the data is valid
func IsValidUTF8String(data []byte) bool {
	return ValidateUTF8String(data) == nil
}
