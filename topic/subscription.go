package topic

import "github.com/naspanel/nasmon/encoding"

// Subscription represents an active subscription
type Subscription struct {
	ClientID    string
	TopicFilter string
	QoS         encoding.QoS
}

// SubscriberInfo contains subscriber metadata for routing
type SubscriberInfo struct {
	ClientID string
	QoS      encoding.QoS
}
