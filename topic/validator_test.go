package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr error
	}{
		{name: "simple", topic: "nas/panel/data"},
		{name: "single_level", topic: "status"},
		{name: "empty_levels", topic: "a//b"},
		{name: "leading_slash", topic: "/a/b"},
		{name: "dollar_prefixed", topic: "$SYS/broker/uptime"},
		{name: "empty", topic: "", wantErr: ErrEmptyTopic},
		{name: "plus_wildcard", topic: "a/+/b", wantErr: ErrWildcardInTopic},
		{name: "hash_wildcard", topic: "a/#", wantErr: ErrWildcardInTopic},
		{name: "null_byte", topic: "a\x00b", wantErr: ErrNullInTopic},
		{name: "too_long", topic: strings.Repeat("a", 65536), wantErr: ErrTopicTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		wantErr error
	}{
		{name: "exact", filter: "nas/panel/data"},
		{name: "single_level_wildcard", filter: "sensors/+/temp"},
		{name: "multi_level_wildcard", filter: "alerts/#"},
		{name: "bare_hash", filter: "#"},
		{name: "bare_plus", filter: "+"},
		{name: "plus_then_hash", filter: "+/+/#"},
		{name: "empty", filter: "", wantErr: ErrEmptyTopic},
		{name: "hash_not_last", filter: "a/#/b", wantErr: ErrMultiLevelNotLast},
		{name: "hash_in_level", filter: "a/b#", wantErr: ErrWildcardNotAlone},
		{name: "plus_in_level", filter: "a/b+/c", wantErr: ErrWildcardNotAlone},
		{name: "null_byte", filter: "a\x00b", wantErr: ErrNullInTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSplitTopicLevels(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitTopicLevels("a/b/c"))
	assert.Equal(t, []string{"", "a"}, splitTopicLevels("/a"))
	assert.Equal(t, []string{"a", "", "b"}, splitTopicLevels("a//b"))
	assert.Equal(t, []string{"a", ""}, splitTopicLevels("a/"))
	assert.Empty(t, splitTopicLevels(""))
}
