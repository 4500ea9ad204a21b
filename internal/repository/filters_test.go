package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ordersync/internal/domain"
)

func TestBuildWhereEmpty(t *testing.T) {
	where, args := buildWhere(Filters{IncludeArchived: true})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildWhereExcludesArchivedByDefault(t *testing.T) {
	where, args := buildWhere(Filters{})
	assert.Equal(t, " WHERE NOT archived", where)
	assert.Empty(t, args)
}

func TestBuildWhereCombines(t *testing.T) {
	from := time.Unix(1000, 0)
	where, args := buildWhere(Filters{Search: "crowley", Status: domain.StatusReady, From: &from, IncludeArchived: true})
	assert.Contains(t, where, "guest_name ILIKE $1")
	assert.Contains(t, where, "status = ANY($2)")
	assert.Contains(t, where, "created_at >= $3")
	assert.Equal(t, []any{"%crowley%", []string{"ready"}, from}, args)
}

func TestDeliveryFilterMatchesWireLiteral(t *testing.T) {
	// rows written before normalization still carry out_for_delivery
	assert.Equal(t, []string{"delivery", "out_for_delivery"}, wireStatusValues(domain.StatusDelivery))
	assert.Equal(t, []string{"paid"}, wireStatusValues(domain.StatusPaid))
}

func TestBuildSet(t *testing.T) {
	name := "Ana"
	total := 55.5
	set, args := buildSet(Fields{GuestName: &name, TotalAmount: &total})
	assert.Equal(t, []string{"guest_name = $1", "total_amount = $2"}, set)
	assert.Equal(t, []any{"Ana", 55.5}, args)
}
