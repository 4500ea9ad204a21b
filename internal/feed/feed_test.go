package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicFilters(t *testing.T) {
	all := AllOrders()
	assert.Equal(t, TopicAll, all.Topic)
	assert.Empty(t, all.OwnerKey)

	f := OrdersForOwner("A4_Natascha")
	assert.Equal(t, "orders.user.A4_Natascha", f.Topic)
	assert.Equal(t, "A4_Natascha", f.OwnerKey)
}

func TestRoutingKeyStaysOneToken(t *testing.T) {
	assert.Equal(t, "order.A4_Natascha", routingKey("A4_Natascha"))
	// dots would split AMQP routing tokens and escape the order.* binding
	assert.Equal(t, "order.a%2Eb%2Ec", routingKey("a.b.c"))
	assert.Equal(t, "order.3fa85f64-5717-4562-b3fc-2c963f66afa6", routingKey("3fa85f64-5717-4562-b3fc-2c963f66afa6"))
}

func TestRoutingKeyDistinctOwnersStayDistinct(t *testing.T) {
	// escaping must be injective: a collapsed encoding would cross-deliver
	// one owner's events to another's per-identity channel
	assert.NotEqual(t, routingKey("a.b"), routingKey("a-b"))
	assert.NotEqual(t, routingKey("a b"), routingKey("a.b"))
	assert.NotEqual(t, routingKey("a%2Eb"), routingKey("a.b"))
}
