package customers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersync/internal/common/logger"
	"ordersync/internal/domain"
	"ordersync/internal/identity"
	"ordersync/internal/repository"
)

type mockAggregator struct {
	fn func(ctx context.Context, includeArchived bool) ([]repository.CustomerRow, error)
}

func (m *mockAggregator) AggregateCustomers(ctx context.Context, includeArchived bool) ([]repository.CustomerRow, error) {
	return m.fn(ctx, includeArchived)
}

type mockQuerier struct {
	fn func(ctx context.Context, offset, limit int, f repository.Filters) ([]domain.Order, error)
}

func (m *mockQuerier) QueryOrders(ctx context.Context, offset, limit int, f repository.Filters) ([]domain.Order, error) {
	return m.fn(ctx, offset, limit, f)
}

func strptr(s string) *string { return &s }

func TestListUsesServerAggregate(t *testing.T) {
	agg := &mockAggregator{fn: func(context.Context, bool) ([]repository.CustomerRow, error) {
		return []repository.CustomerRow{
			{CustomerKey: "3fa85f64-5717-4562-b3fc-2c963f66afa6", Name: "Maria", TotalSpent: 120, OrderCount: 3},
			{CustomerKey: "A5_CROWLEY", TotalSpent: 45, OrderCount: 1},
		}, nil
	}}
	svc := New(agg, nil, logger.New("customers-test"))

	out, err := svc.List(context.Background(), Query{Sort: SortName})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "A5 CROWLEY", out[0].DisplayName)
	assert.Equal(t, identity.KindGuestFamily, out[0].Kind)
	assert.Equal(t, "Maria", out[1].DisplayName)
	assert.Equal(t, identity.KindAuthenticatedUser, out[1].Kind)
}

func TestListFallsBackToManualGrouping(t *testing.T) {
	agg := &mockAggregator{fn: func(context.Context, bool) ([]repository.CustomerRow, error) {
		return nil, errors.New("aggregate rpc down")
	}}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{ID: 1, StayID: strptr("A4_Natascha"), TotalAmount: 30, CreatedAt: base},
		{ID: 2, StayID: strptr("a4 natascha"), TotalAmount: 20, CreatedAt: base.Add(time.Hour)},
		{ID: 3, StayID: strptr("walkin_12"), GuestName: strptr("Ana"), TotalAmount: 15, CreatedAt: base},
	}
	q := &mockQuerier{fn: func(_ context.Context, offset, limit int, _ repository.Filters) ([]domain.Order, error) {
		if offset == 0 {
			return orders, nil
		}
		return nil, nil
	}}
	svc := New(agg, q, logger.New("customers-test"))

	out, err := svc.List(context.Background(), Query{Sort: SortTotal, Desc: true})
	require.NoError(t, err)
	require.Len(t, out, 2, "differing stay-id spellings merge into one family")
	assert.Equal(t, "A4_Natascha", out[0].CustomerKey, "the first-seen spelling is the displayed one")
	assert.Equal(t, 50.0, out[0].TotalSpent)
	assert.Equal(t, 2, out[0].OrderCount)
	assert.Equal(t, base.Add(time.Hour), out[0].LastOrder)
	assert.Equal(t, base, out[0].Joined)
	assert.Equal(t, "Walkin 12 (Ana)", out[1].DisplayName)
}

func TestListErrorWhenBothPathsFail(t *testing.T) {
	agg := &mockAggregator{fn: func(context.Context, bool) ([]repository.CustomerRow, error) {
		return nil, errors.New("aggregate rpc down")
	}}
	q := &mockQuerier{fn: func(context.Context, int, int, repository.Filters) ([]domain.Order, error) {
		return nil, errors.New("db down")
	}}
	svc := New(agg, q, logger.New("customers-test"))

	out, err := svc.List(context.Background(), Query{})
	require.Error(t, err, "a double failure must never look like an empty customer list")
	assert.Nil(t, out)
}

func TestListExcludesOwnerlessOrders(t *testing.T) {
	agg := &mockAggregator{fn: func(context.Context, bool) ([]repository.CustomerRow, error) {
		return nil, errors.New("down")
	}}
	q := &mockQuerier{fn: func(_ context.Context, offset, _ int, _ repository.Filters) ([]domain.Order, error) {
		if offset > 0 {
			return nil, nil
		}
		return []domain.Order{
			{ID: 1, TotalAmount: 10, CreatedAt: time.Now()}, // no owner at all
			{ID: 2, StayID: strptr("B2_Smith"), TotalAmount: 5, CreatedAt: time.Now()},
		}, nil
	}}
	svc := New(agg, q, logger.New("customers-test"))

	out, err := svc.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "B2_Smith", out[0].CustomerKey)
}

func TestListSearchFiltersByNameOrKey(t *testing.T) {
	agg := &mockAggregator{fn: func(context.Context, bool) ([]repository.CustomerRow, error) {
		return []repository.CustomerRow{
			{CustomerKey: "A5_CROWLEY", TotalSpent: 45},
			{CustomerKey: "walkin_12", FirstName: "Ana", TotalSpent: 10},
		}, nil
	}}
	svc := New(agg, nil, logger.New("customers-test"))

	out, err := svc.List(context.Background(), Query{Search: "crowley"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "A5_CROWLEY", out[0].CustomerKey)

	out, err = svc.List(context.Background(), Query{Search: "WALKIN"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "walkin_12", out[0].CustomerKey)
}

func TestSortOrders(t *testing.T) {
	agg := &mockAggregator{fn: func(context.Context, bool) ([]repository.CustomerRow, error) {
		return []repository.CustomerRow{
			{CustomerKey: "B1_Abel", TotalSpent: 10, LastOrder: time.Unix(100, 0)},
			{CustomerKey: "A2_Zed", TotalSpent: 99, LastOrder: time.Unix(50, 0)},
		}, nil
	}}
	svc := New(agg, nil, logger.New("customers-test"))

	out, _ := svc.List(context.Background(), Query{Sort: SortName})
	assert.Equal(t, "A2 Zed", out[0].DisplayName)

	out, _ = svc.List(context.Background(), Query{Sort: SortTotal, Desc: true})
	assert.Equal(t, 99.0, out[0].TotalSpent)

	out, _ = svc.List(context.Background(), Query{Sort: SortLastOrder, Desc: true})
	assert.Equal(t, time.Unix(100, 0), out[0].LastOrder)
}
