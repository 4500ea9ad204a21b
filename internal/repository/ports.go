package repository

import (
	"context"
	"time"

	"ordersync/internal/domain"
)

// Filters narrows an order query. Zero value means no filtering.
type Filters struct {
	Search          string
	Status          domain.Status
	From, To        *time.Time
	IncludeArchived bool
}

// Fields is a partial order update; nil members are left untouched.
type Fields struct {
	Status      *string
	GuestName   *string
	StayID      *string
	TableNumber *int
	TotalAmount *float64
}

// CustomerRow is one server-computed aggregation result.
type CustomerRow struct {
	CustomerKey string
	Name        string
	Email       string
	FirstName   string
	TotalSpent  float64
	OrderCount  int
	LastOrder   time.Time
	FirstOrder  time.Time
}

type OrderQuerier interface {
	// QueryOrders returns one page, most recent first. Fewer than limit rows
	// signals end of collection.
	QueryOrders(ctx context.Context, offset, limit int, f Filters) ([]domain.Order, error)
}

type OrderWriter interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	// UpdateOrderStatus returns the ids actually updated. The confirmed set
	// may be smaller than ids when some rows no longer exist.
	UpdateOrderStatus(ctx context.Context, ids []int64, status domain.Status) ([]int64, error)
	UpdateOrder(ctx context.Context, id int64, fields Fields) (domain.Order, error)
	DeleteOrders(ctx context.Context, ids []int64) error
}

type CustomerAggregator interface {
	AggregateCustomers(ctx context.Context, includeArchived bool) ([]CustomerRow, error)
}
