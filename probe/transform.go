package probe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Transform maps a probe's raw text to the emitted value. The set is
// closed; arbitrary expressions are rejected at config-load time.
type Transform func(raw string) (any, error)

// ParseTransform resolves a transform declaration. Recognized forms:
//
//	""            identity (trim, then numeric coercion)
//	"identity"    same as ""
//	"parse-int"   integer, base 10
//	"parse-float" float64
//	"trim"        trimmed string, no coercion
//	"scale:F"     parse as float, multiply by constant F
//	"regex:RE"    first capture group of RE, then numeric coercion
func ParseTransform(spec string) (Transform, error) {
	switch {
	case spec == "" || spec == "identity":
		return func(raw string) (any, error) {
			return coerce(strings.TrimSpace(raw)), nil
		}, nil

	case spec == "parse-int":
		return func(raw string) (any, error) {
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse-int: %w", err)
			}
			return n, nil
		}, nil

	case spec == "parse-float":
		return func(raw string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("parse-float: %w", err)
			}
			return f, nil
		}, nil

	case spec == "trim":
		return func(raw string) (any, error) {
			return strings.TrimSpace(raw), nil
		}, nil

	case strings.HasPrefix(spec, "scale:"):
		factor, err := strconv.ParseFloat(strings.TrimPrefix(spec, "scale:"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad scale factor %q", ErrUnknownTransform, spec)
		}
		return func(raw string) (any, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("scale: %w", err)
			}
			return f * factor, nil
		}, nil

	case strings.HasPrefix(spec, "regex:"):
		re, err := regexp.Compile(strings.TrimPrefix(spec, "regex:"))
		if err != nil {
			return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrUnknownTransform, spec, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("%w: pattern %q has no capture group", ErrUnknownTransform, spec)
		}
		return func(raw string) (any, error) {
			m := re.FindStringSubmatch(raw)
			if m == nil {
				return nil, ErrNoMatch
			}
			return coerce(m[1]), nil
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, spec)
	}
}

// coerce turns numeric-looking text into a number, mirroring how probe
// output is typically consumed
func coerce(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
