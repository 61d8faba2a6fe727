package topic

import (
	"sync"

	"github.com/naspanel/nasmon/encoding"
)

// Router manages topic subscriptions and resolves which clients receive a
// published message.
type Router struct {
	trie          *Trie
	subscriptions map[string]map[string]encoding.QoS // clientID -> filter -> granted QoS
	mu            sync.RWMutex
}

// NewRouter creates a new topic router
func NewRouter() *Router {
	return &Router{
		trie:          NewTrie(),
		subscriptions: make(map[string]map[string]encoding.QoS),
	}
}

// Subscribe adds a subscription. Subscribing again with the same filter
// updates the granted QoS.
func (r *Router) Subscribe(clientID, filter string, qos encoding.QoS) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}

	if err := r.trie.Subscribe(filter, SubscriberInfo{ClientID: clientID, QoS: qos}); err != nil {
		return err
	}

	r.mu.Lock()
	if r.subscriptions[clientID] == nil {
		r.subscriptions[clientID] = make(map[string]encoding.QoS)
	}
	r.subscriptions[clientID][filter] = qos
	r.mu.Unlock()

	return nil
}

// Unsubscribe removes a subscription. Returns false if the client had no
// subscription on the filter.
func (r *Router) Unsubscribe(clientID, filter string) bool {
	found := r.trie.Unsubscribe(filter, clientID)

	r.mu.Lock()
	if clientSubs, ok := r.subscriptions[clientID]; ok {
		delete(clientSubs, filter)
		if len(clientSubs) == 0 {
			delete(r.subscriptions, clientID)
		}
	}
	r.mu.Unlock()

	return found
}

// RemoveClient removes all subscriptions for a client and returns how many
// were removed.
func (r *Router) RemoveClient(clientID string) int {
	r.mu.Lock()
	clientSubs, ok := r.subscriptions[clientID]
	if !ok {
		r.mu.Unlock()
		return 0
	}

	filters := make([]string, 0, len(clientSubs))
	for filter := range clientSubs {
		filters = append(filters, filter)
	}
	delete(r.subscriptions, clientID)
	r.mu.Unlock()

	count := 0
	for _, filter := range filters {
		if r.trie.Unsubscribe(filter, clientID) {
			count++
		}
	}

	return count
}

// Match finds all subscribers for a topic. A client matching through
// several filters appears once, with the maximum granted QoS.
func (r *Router) Match(topic string) []SubscriberInfo {
	matches := r.trie.Match(topic)
	if len(matches) <= 1 {
		return matches
	}

	best := make(map[string]int, len(matches))
	deduped := make([]SubscriberInfo, 0, len(matches))
	for _, sub := range matches {
		if i, seen := best[sub.ClientID]; seen {
			if sub.QoS > deduped[i].QoS {
				deduped[i].QoS = sub.QoS
			}
			continue
		}
		best[sub.ClientID] = len(deduped)
		deduped = append(deduped, sub)
	}

	return deduped
}

// Subscriptions returns a copy of a client's filter-to-QoS map
func (r *Router) Subscriptions(clientID string) map[string]encoding.QoS {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clientSubs, ok := r.subscriptions[clientID]
	if !ok {
		return nil
	}

	result := make(map[string]encoding.QoS, len(clientSubs))
	for filter, qos := range clientSubs {
		result[filter] = qos
	}
	return result
}

// Count returns the total number of subscriptions
func (r *Router) Count() int {
	return r.trie.Count()
}

// CountClients returns the number of clients with subscriptions
func (r *Router) CountClients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}

// Clear removes all subscriptions
func (r *Router) Clear() {
	r.mu.Lock()
	r.subscriptions = make(map[string]map[string]encoding.QoS)
	r.mu.Unlock()
	r.trie.Clear()
}
