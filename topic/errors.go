package topic

import "errors"

var (
	// ErrEmptyTopic indicates an empty topic name or filter
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrTopicTooLong indicates the topic exceeds 65535 bytes
	ErrTopicTooLong = errors.New("topic exceeds maximum length of 65535 bytes")

	// ErrInvalidTopicUTF8 indicates the topic contains invalid UTF-8
	ErrInvalidTopicUTF8 = errors.New("topic contains invalid UTF-8 characters")

	// ErrNullInTopic indicates the topic contains a null character
	ErrNullInTopic = errors.New("topic cannot contain null characters")

	// ErrWildcardInTopic indicates a wildcard character in a topic name
	ErrWildcardInTopic = errors.New("topic name cannot contain wildcard characters")

	// ErrMultiLevelNotLast indicates '#' used before the final level
	ErrMultiLevelNotLast = errors.New("multi-level wildcard '#' must be the last level")

	// ErrWildcardNotAlone indicates '+' or '#' mixed with other characters in a level
	ErrWildcardNotAlone = errors.New("wildcard must occupy an entire level")
)
