package topic

import (
	"strings"
	"unicode/utf8"
)

// ValidateTopic validates a topic name according to MQTT 3.1.1 section 4.7.
// Topic names carry no wildcards.
func ValidateTopic(topic string) error {
	if len(topic) == 0 {
		return ErrEmptyTopic
	}
	if len(topic) > 65535 {
		return ErrTopicTooLong
	}
	if !utf8.ValidString(topic) {
		return ErrInvalidTopicUTF8
	}

	for i := 0; i < len(topic); i++ {
		c := topic[i]
		if c == '+' || c == '#' {
			return ErrWildcardInTopic
		}
		if c == 0 {
			return ErrNullInTopic
		}
	}

	return nil
}

// ValidateFilter validates a topic filter according to MQTT 3.1.1 section 4.7.
// '+' must occupy an entire level; '#' must occupy the entire final level.
func ValidateFilter(filter string) error {
	if len(filter) == 0 {
		return ErrEmptyTopic
	}
	if len(filter) > 65535 {
		return ErrTopicTooLong
	}
	if !utf8.ValidString(filter) {
		return ErrInvalidTopicUTF8
	}

	for i := 0; i < len(filter); i++ {
		if filter[i] == 0 {
			return ErrNullInTopic
		}
	}

	levels := splitTopicLevels(filter)
	for i, level := range levels {
		if len(level) == 0 {
			continue // Empty level is valid (e.g., "a//b")
		}

		if strings.ContainsRune(level, '#') {
			if level != "#" {
				return ErrWildcardNotAlone
			}
			if i != len(levels)-1 {
				return ErrMultiLevelNotLast
			}
		}

		if strings.ContainsRune(level, '+') && level != "+" {
			return ErrWildcardNotAlone
		}
	}

	return nil
}

// splitTopicLevels splits a topic into levels by '/'
func splitTopicLevels(topic string) []string {
	if len(topic) == 0 {
		return []string{}
	}

	levels := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(topic); i++ {
		if topic[i] == '/' {
			levels = append(levels, topic[start:i])
			start = i + 1
		}
	}
	levels = append(levels, topic[start:])
	return levels
}
