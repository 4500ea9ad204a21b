// Package feed defines the push-notification boundary: a channel of row-change
// events scoped by topic, plus the AMQP adapter that implements it.
package feed

import (
	"context"
	"fmt"
	"strings"

	"ordersync/internal/domain"
)

// TopicAll is the global topic carrying every order change (admin dashboard).
const TopicAll = "orders.all"

// TopicFilter names a topic and the protocol-level filter attached to its
// live channel. An empty OwnerKey means all rows.
type TopicFilter struct {
	Topic    string
	OwnerKey string
}

// AllOrders is the filter for the admin dashboard's global topic.
func AllOrders() TopicFilter { return TopicFilter{Topic: TopicAll} }

// OrdersForOwner scopes the channel to one customer's orders, keyed by the
// account UUID or stay id.
func OrdersForOwner(key string) TopicFilter {
	return TopicFilter{Topic: "orders.user." + key, OwnerKey: key}
}

// Handle is one live push channel. Events closes when the handle is closed.
type Handle interface {
	Events() <-chan domain.OrderEvent
	Close() error
}

// Opener opens live channels. The registry is its only caller.
type Opener interface {
	OpenChannel(ctx context.Context, f TopicFilter) (Handle, error)
}

// routingKey maps an owner key onto one AMQP routing-key token so the
// all-orders binding "order.*" still matches (dots would split tokens).
// Unsafe bytes are percent-escaped rather than collapsed: distinct owner
// keys must never share a routing key, or one owner's per-identity channel
// would receive another's events.
func routingKey(ownerKey string) string {
	var b strings.Builder
	b.WriteString("order.")
	for i := 0; i < len(ownerKey); i++ {
		switch c := ownerKey[i]; {
		case c == '-' || c == '_' ||
			c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
