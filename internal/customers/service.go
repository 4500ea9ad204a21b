// Package customers groups raw orders into customer-level summaries: one row
// per authenticated account or guest family, with totals and recency.
package customers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ordersync/internal/common/logger"
	"ordersync/internal/identity"
	"ordersync/internal/repository"
)

type Summary struct {
	CustomerKey string        `json:"customer_key"`
	DisplayName string        `json:"display_name"`
	Kind        identity.Kind `json:"kind"`
	TotalSpent  float64       `json:"total_spent"`
	OrderCount  int           `json:"order_count"`
	LastOrder   time.Time     `json:"last_order"`
	Joined      time.Time     `json:"joined"`
}

type SortKey string

const (
	SortName      SortKey = "name"
	SortTotal     SortKey = "total"
	SortLastOrder SortKey = "last_order"
	SortJoined    SortKey = "joined"
)

type Query struct {
	IncludeArchived bool
	Sort            SortKey
	Desc            bool
	Search          string
}

const fallbackPageSize = 200

type Service struct {
	agg     repository.CustomerAggregator
	querier repository.OrderQuerier
	lg      *logger.Logger
}

func New(agg repository.CustomerAggregator, querier repository.OrderQuerier, lg *logger.Logger) *Service {
	return &Service{agg: agg, querier: querier, lg: lg}
}

// List produces customer summaries. The server-side aggregate is the primary
// path; when it fails the service pages through the order query port and
// groups in memory. Only when both paths fail does an error propagate; a
// failure is never disguised as an empty customer list.
func (s *Service) List(ctx context.Context, q Query) ([]Summary, error) {
	rows, err := s.agg.AggregateCustomers(ctx, q.IncludeArchived)
	if err != nil {
		s.lg.Error("aggregate_customers", err, map[string]any{"fallback": true})
		var ferr error
		rows, ferr = s.aggregateManually(ctx, q.IncludeArchived)
		if ferr != nil {
			return nil, fmt.Errorf("aggregate customers: %w (fallback: %v)", err, ferr)
		}
	}

	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		if row.CustomerKey == "" {
			// data-integrity anomaly: grouping these under one empty key
			// would merge unrelated walk-ins
			s.lg.Error("customer_key_missing", nil, map[string]any{"orders": row.OrderCount})
			continue
		}
		summaries = append(summaries, s.summarize(row))
	}

	summaries = filterSummaries(summaries, q.Search)
	sortSummaries(summaries, q.Sort, q.Desc)
	return summaries, nil
}

func (s *Service) summarize(row repository.CustomerRow) Summary {
	id := identity.Classify(row.CustomerKey)
	var name string
	switch id.Kind {
	case identity.KindAuthenticatedUser:
		name = identity.AccountDisplayName(row.Name, row.Email, id.UserID)
	default:
		name = identity.GuestDisplayName(id.StayID, row.FirstName, nil)
	}
	return Summary{
		CustomerKey: row.CustomerKey,
		DisplayName: name,
		Kind:        id.Kind,
		TotalSpent:  row.TotalSpent,
		OrderCount:  row.OrderCount,
		LastOrder:   row.LastOrder,
		Joined:      row.FirstOrder,
	}
}

// aggregateManually is the documented fallback: page through every order and
// group client-side. Guests group by the canonical stay id so spellings that
// differ only in case or separators land in one family.
func (s *Service) aggregateManually(ctx context.Context, includeArchived bool) ([]repository.CustomerRow, error) {
	grouped := make(map[string]*repository.CustomerRow)
	filters := repository.Filters{IncludeArchived: includeArchived}
	for offset := 0; ; offset += fallbackPageSize {
		page, err := s.querier.QueryOrders(ctx, offset, fallbackPageSize, filters)
		if err != nil {
			return nil, fmt.Errorf("manual aggregation page at %d: %w", offset, err)
		}
		for _, o := range page {
			key := o.OwnerKey()
			if key == "" {
				continue
			}
			groupKey := key
			if identity.Classify(key).Kind == identity.KindGuestFamily {
				groupKey = identity.CanonicalStayID(key)
			}
			row, ok := grouped[groupKey]
			if !ok {
				row = &repository.CustomerRow{CustomerKey: key, FirstOrder: o.CreatedAt, LastOrder: o.CreatedAt}
				grouped[groupKey] = row
			}
			row.TotalSpent += o.TotalAmount
			row.OrderCount++
			if o.CreatedAt.After(row.LastOrder) {
				row.LastOrder = o.CreatedAt
			}
			if o.CreatedAt.Before(row.FirstOrder) {
				row.FirstOrder = o.CreatedAt
			}
			if row.FirstName == "" && o.GuestName != nil {
				row.FirstName = *o.GuestName
			}
		}
		if len(page) < fallbackPageSize {
			break
		}
	}
	rows := make([]repository.CustomerRow, 0, len(grouped))
	for _, row := range grouped {
		rows = append(rows, *row)
	}
	return rows, nil
}

func filterSummaries(in []Summary, search string) []Summary {
	search = strings.TrimSpace(strings.ToLower(search))
	if search == "" {
		return in
	}
	out := in[:0]
	for _, s := range in {
		if strings.Contains(strings.ToLower(s.DisplayName), search) ||
			strings.Contains(strings.ToLower(s.CustomerKey), search) {
			out = append(out, s)
		}
	}
	return out
}

func sortSummaries(in []Summary, key SortKey, desc bool) {
	less := func(a, b Summary) bool { return a.DisplayName < b.DisplayName }
	switch key {
	case SortTotal:
		less = func(a, b Summary) bool { return a.TotalSpent < b.TotalSpent }
	case SortLastOrder:
		less = func(a, b Summary) bool { return a.LastOrder.Before(b.LastOrder) }
	case SortJoined:
		less = func(a, b Summary) bool { return a.Joined.Before(b.Joined) }
	}
	sort.SliceStable(in, func(i, j int) bool {
		if desc {
			return less(in[j], in[i])
		}
		return less(in[i], in[j])
	})
}
