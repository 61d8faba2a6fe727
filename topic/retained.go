package topic

import (
	"strings"
	"sync"

	"github.com/naspanel/nasmon/types/message"
)

// retainedNode represents a node in the retained messages trie
type retainedNode struct {
	children map[string]*retainedNode
	message  *message.Message
}

func newRetainedNode() *retainedNode {
	return &retainedNode{
		children: make(map[string]*retainedNode),
	}
}

// RetainedStore holds at most one retained message per concrete topic.
// Contents live for the broker lifetime only.
type RetainedStore struct {
	mu    sync.RWMutex
	root  *retainedNode
	count int
}

// NewRetainedStore creates an empty retained message store
func NewRetainedStore() *RetainedStore {
	return &RetainedStore{
		root: newRetainedNode(),
	}
}

// Set stores a retained message, replacing any previous one on the same
// topic. An empty payload deletes the retained message instead.
func (r *RetainedStore) Set(topic string, msg *message.Message) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(msg.Payload) == 0 {
		r.deleteLocked(topic)
		return nil
	}

	levels := splitTopicLevels(topic)
	node := r.root
	for _, level := range levels {
		if node.children[level] == nil {
			node.children[level] = newRetainedNode()
		}
		node = node.children[level]
	}

	if node.message == nil {
		r.count++
	}
	node.message = msg

	return nil
}

// Get returns the retained message for a concrete topic, or nil
func (r *RetainedStore) Get(topic string) *message.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node := r.root
	for _, level := range splitTopicLevels(topic) {
		node = node.children[level]
		if node == nil {
			return nil
		}
	}
	return node.message
}

// Delete removes the retained message for a topic
func (r *RetainedStore) Delete(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteLocked(topic)
}

// deleteLocked removes a retained message and prunes empty nodes.
// Caller must hold r.mu.
func (r *RetainedStore) deleteLocked(topic string) {
	levels := splitTopicLevels(topic)
	if len(levels) == 0 {
		return
	}

	path := make([]*retainedNode, 0, len(levels)+1)
	path = append(path, r.root)
	node := r.root

	for _, level := range levels {
		node = node.children[level]
		if node == nil {
			return
		}
		path = append(path, node)
	}

	if node.message != nil {
		node.message = nil
		r.count--
	}

	// Prune empty nodes from leaf to root
	for i := len(path) - 1; i > 0; i-- {
		current := path[i]
		if current.message != nil || len(current.children) > 0 {
			break
		}

		parent := path[i-1]
		delete(parent.children, levels[i-1])
	}
}

// Match returns retained messages whose topics match the filter. Used when
// a new subscription arrives. Wildcards do not match topics whose first
// level starts with '$'.
func (r *RetainedStore) Match(filter string) []*message.Message {
	if err := ValidateFilter(filter); err != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	filterLevels := splitTopicLevels(filter)
	var matched []*message.Message
	r.matchRecursive(r.root, filterLevels, 0, &matched)
	return matched
}

func (r *RetainedStore) matchRecursive(node *retainedNode, filterLevels []string, depth int, matched *[]*message.Message) {
	if depth == len(filterLevels) {
		if node.message != nil {
			*matched = append(*matched, node.message)
		}
		return
	}

	filterLevel := filterLevels[depth]

	switch filterLevel {
	case "#":
		// '#' also matches the parent level itself
		for levelName, child := range node.children {
			if depth == 0 && strings.HasPrefix(levelName, "$") {
				continue
			}
			r.collectAll(child, matched)
		}
		if node.message != nil {
			*matched = append(*matched, node.message)
		}
	case "+":
		for levelName, child := range node.children {
			if depth == 0 && strings.HasPrefix(levelName, "$") {
				continue
			}
			r.matchRecursive(child, filterLevels, depth+1, matched)
		}
	default:
		if child := node.children[filterLevel]; child != nil {
			r.matchRecursive(child, filterLevels, depth+1, matched)
		}
	}
}

// collectAll gathers every message at a node and its descendants
func (r *RetainedStore) collectAll(node *retainedNode, matched *[]*message.Message) {
	if node.message != nil {
		*matched = append(*matched, node.message)
	}
	for _, child := range node.children {
		r.collectAll(child, matched)
	}
}

// Count returns the number of retained messages
func (r *RetainedStore) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear removes all retained messages
func (r *RetainedStore) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.root = newRetainedNode()
	r.count = 0
}
