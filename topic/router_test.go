package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naspanel/nasmon/encoding"
)

func clientIDs(subs []SubscriberInfo) []string {
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ClientID)
	}
	return ids
}

func TestRouterExactMatch(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("c1", "nas/panel/data", encoding.QoS1))
	require.NoError(t, r.Subscribe("c2", "nas/panel/other", encoding.QoS0))

	matches := r.Match("nas/panel/data")
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ClientID)
	assert.Equal(t, encoding.QoS1, matches[0].QoS)

	assert.Empty(t, r.Match("nas/panel/unknown"))
}

func TestRouterWildcardMatch(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		topic   string
		matches bool
	}{
		{name: "plus_single_level", filter: "sensors/+/temp", topic: "sensors/disk1/temp", matches: true},
		{name: "plus_wrong_depth", filter: "sensors/+/temp", topic: "sensors/disk1/fan/temp", matches: false},
		{name: "plus_empty_level", filter: "a/+/c", topic: "a//c", matches: true},
		{name: "hash_deep", filter: "alerts/#", topic: "alerts/disk/smart/fail", matches: true},
		{name: "hash_matches_parent", filter: "alerts/#", topic: "alerts", matches: true},
		{name: "hash_root", filter: "#", topic: "any/topic/at/all", matches: true},
		{name: "plus_no_parent_match", filter: "a/+", topic: "a", matches: false},
		{name: "exact_not_prefix", filter: "a/b", topic: "a/b/c", matches: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter()
			require.NoError(t, r.Subscribe("c1", tt.filter, encoding.QoS0))

			matches := r.Match(tt.topic)
			if tt.matches {
				assert.Len(t, matches, 1)
			} else {
				assert.Empty(t, matches)
			}
		})
	}
}

func TestRouterDollarTopicsExcludedFromWildcards(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("wild", "#", encoding.QoS0))
	require.NoError(t, r.Subscribe("plus", "+/broker", encoding.QoS0))
	require.NoError(t, r.Subscribe("sys", "$SYS/#", encoding.QoS0))

	matches := r.Match("$SYS/broker")
	assert.Equal(t, []string{"sys"}, clientIDs(matches))

	// Regular topics still match the wildcard subscribers
	matches = r.Match("nas/broker")
	assert.ElementsMatch(t, []string{"wild", "plus"}, clientIDs(matches))
}

func TestRouterDedupesByClientWithMaxQoS(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("c1", "nas/panel/data", encoding.QoS0))
	require.NoError(t, r.Subscribe("c1", "nas/#", encoding.QoS1))
	require.NoError(t, r.Subscribe("c2", "nas/+/data", encoding.QoS0))

	matches := r.Match("nas/panel/data")
	require.Len(t, matches, 2)

	byClient := make(map[string]encoding.QoS)
	for _, sub := range matches {
		byClient[sub.ClientID] = sub.QoS
	}
	assert.Equal(t, encoding.QoS1, byClient["c1"])
	assert.Equal(t, encoding.QoS0, byClient["c2"])
}

func TestRouterResubscribeUpdatesQoS(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("c1", "a/b", encoding.QoS0))
	require.NoError(t, r.Subscribe("c1", "a/b", encoding.QoS1))

	matches := r.Match("a/b")
	require.Len(t, matches, 1)
	assert.Equal(t, encoding.QoS1, matches[0].QoS)
	assert.Equal(t, 1, r.Count())
}

func TestRouterUnsubscribe(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("c1", "a/b", encoding.QoS0))

	assert.True(t, r.Unsubscribe("c1", "a/b"))
	assert.Empty(t, r.Match("a/b"))
	assert.False(t, r.Unsubscribe("c1", "a/b"), "second unsubscribe is a no-op")
	assert.Zero(t, r.CountClients())
}

func TestRouterRemoveClient(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("c1", "a/b", encoding.QoS0))
	require.NoError(t, r.Subscribe("c1", "c/#", encoding.QoS1))
	require.NoError(t, r.Subscribe("c2", "a/b", encoding.QoS0))

	assert.Equal(t, 2, r.RemoveClient("c1"))
	assert.Equal(t, []string{"c2"}, clientIDs(r.Match("a/b")))
	assert.Empty(t, r.Match("c/d"))
	assert.Zero(t, r.RemoveClient("c1"))
}

func TestRouterSubscriptionsSnapshot(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Subscribe("c1", "a/b", encoding.QoS1))

	subs := r.Subscriptions("c1")
	require.Len(t, subs, 1)
	assert.Equal(t, encoding.QoS1, subs["a/b"])

	// Mutating the snapshot does not touch the router
	subs["x/y"] = encoding.QoS0
	assert.Len(t, r.Subscriptions("c1"), 1)

	assert.Nil(t, r.Subscriptions("unknown"))
}

func TestRouterConcurrentAccess(t *testing.T) {
	r := NewRouter()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = r.Subscribe("writer", "sensors/+/temp", encoding.QoS1)
			r.Unsubscribe("writer", "sensors/+/temp")
		}
	}()

	for i := 0; i < 500; i++ {
		r.Match("sensors/disk1/temp")
	}
	<-done
}
