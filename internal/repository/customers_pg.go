package repository

import (
	"context"
	"fmt"

	"ordersync/internal/common/db"
)

// Customers is the pgx implementation of CustomerAggregator: one server-side
// grouping pass instead of paging the whole collection through the client.
type Customers struct {
	conn *db.Conn
}

func NewCustomers(conn *db.Conn) *Customers { return &Customers{conn: conn} }

// AggregateCustomers groups orders by owner. Authenticated orders group by
// account id; guest orders group by the canonical stay id (case-folded,
// separator runs collapsed) so spelling variants land in one family. The
// displayed stay-id spelling and guest name are the earliest order's, the
// same first-seen rule the manual fallback applies. Rows with no owner at
// all are excluded rather than merged under an empty key.
func (r *Customers) AggregateCustomers(ctx context.Context, includeArchived bool) ([]CustomerRow, error) {
	sql := `
		SELECT
			COALESCE(
				MAX(o.user_id),
				(array_agg(o.stay_id ORDER BY o.created_at))[1])    AS customer_key,
			COALESCE(MAX(u.name), '')                           AS name,
			COALESCE(MAX(u.email), '')                          AS email,
			COALESCE(
				(array_agg(o.guest_name ORDER BY o.created_at)
					FILTER (WHERE o.guest_name IS NOT NULL))[1],
				'')                                             AS first_name,
			SUM(o.total_amount)                                 AS total_spent,
			COUNT(*)                                            AS order_count,
			MAX(o.created_at)                                   AS last_order,
			MIN(o.created_at)                                   AS first_order
		FROM orders o
		LEFT JOIN users u ON u.id::text = o.user_id
		WHERE (o.user_id IS NOT NULL OR o.stay_id IS NOT NULL)
		  AND ($1 OR NOT o.archived)
		GROUP BY COALESCE(o.user_id, lower(regexp_replace(o.stay_id, '[-_ ]+', '_', 'g')))
		ORDER BY last_order DESC`

	rows, err := r.conn.Query(ctx, sql, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate customers: %w", err)
	}
	defer rows.Close()

	var out []CustomerRow
	for rows.Next() {
		var c CustomerRow
		if err := rows.Scan(&c.CustomerKey, &c.Name, &c.Email, &c.FirstName,
			&c.TotalSpent, &c.OrderCount, &c.LastOrder, &c.FirstOrder); err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
