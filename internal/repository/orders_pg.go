package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"ordersync/internal/common/db"
	"ordersync/internal/common/logger"
	"ordersync/internal/domain"
	"ordersync/internal/feed"
)

const orderColumns = `id, user_id, guest_session_id, stay_id, guest_name, table_number,
	status, items, total_amount, archived, created_at, updated_at`

// Orders is the pgx implementation of OrderQuerier and OrderWriter. Every
// confirmed mutation is published to the push feed after the write, so live
// subscribers converge on what the store now holds.
type Orders struct {
	conn *db.Conn
	pub  *feed.Publisher
	lg   *logger.Logger
}

func NewOrders(conn *db.Conn, pub *feed.Publisher, lg *logger.Logger) *Orders {
	return &Orders{conn: conn, pub: pub, lg: lg}
}

func (r *Orders) QueryOrders(ctx context.Context, offset, limit int, f Filters) ([]domain.Order, error) {
	where, args := buildWhere(f)
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC OFFSET $%d LIMIT $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Orders) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	total, err := domain.ValidateItems(o.Items)
	if err != nil {
		return domain.Order{}, err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to marshal items: %w", err)
	}
	status := o.Status
	if status == "" {
		status = domain.StatusNew
	}

	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO orders
			(user_id, guest_session_id, stay_id, guest_name, table_number, status, items, total_amount, archived, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, false, NOW(), NOW())
		RETURNING %s`, orderColumns),
		o.UserID, o.GuestSessionID, o.StayID, o.GuestName, o.TableNumber, string(status), items, total)
	created, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	r.publish(ctx, domain.EventInsert, created)
	return created, nil
}

// UpdateOrderStatus sets one status across many rows and returns the ids the
// database actually touched; callers must reconcile only those.
func (r *Orders) UpdateOrderStatus(ctx context.Context, ids []int64, status domain.Status) ([]int64, error) {
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = ANY($2)
		RETURNING %s`, orderColumns),
		string(status), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	defer rows.Close()

	var confirmed []int64
	var updated []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		confirmed = append(confirmed, o.ID)
		updated = append(updated, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	for _, o := range updated {
		r.publish(ctx, domain.EventUpdate, o)
	}
	return confirmed, nil
}

func (r *Orders) UpdateOrder(ctx context.Context, id int64, fields Fields) (domain.Order, error) {
	set, args := buildSet(fields)
	if len(set) == 0 {
		return domain.Order{}, fmt.Errorf("no fields to update for order %d", id)
	}
	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE orders SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), orderColumns)

	updated, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("order %d not found", id)
		}
		return domain.Order{}, fmt.Errorf("failed to update order %d: %w", id, err)
	}
	r.publish(ctx, domain.EventUpdate, updated)
	return updated, nil
}

func (r *Orders) DeleteOrders(ctx context.Context, ids []int64) error {
	rows, err := r.conn.Query(ctx, fmt.Sprintf(
		`DELETE FROM orders WHERE id = ANY($1) RETURNING %s`, orderColumns), ids)
	if err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	defer rows.Close()
	var deleted []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return err
		}
		deleted = append(deleted, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	for _, o := range deleted {
		r.publish(ctx, domain.EventDelete, o)
	}
	return nil
}

func (r *Orders) publish(ctx context.Context, kind domain.EventKind, o domain.Order) {
	if r.pub == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.pub.Publish(pctx, domain.OrderEvent{Kind: kind, Row: o}); err != nil {
		// the write is already committed; subscribers converge on the next reload
		r.lg.Error("event_publish", err, map[string]any{"kind": string(kind), "order_id": o.ID})
	}
}

// buildWhere renders Filters as a WHERE clause. The delivery status matches
// both the domain literal and the store's wire literal so filtered queries
// see rows that predate normalization.
func buildWhere(f Filters) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !f.IncludeArchived {
		conds = append(conds, "NOT archived")
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(guest_name ILIKE %s OR stay_id ILIKE %s OR CAST(id AS TEXT) LIKE %s)", p, p, p))
	}
	if f.Status != "" {
		conds = append(conds, fmt.Sprintf("status = ANY(%s)", arg(wireStatusValues(f.Status))))
	}
	if f.From != nil {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(*f.From)))
	}
	if f.To != nil {
		conds = append(conds, fmt.Sprintf("created_at < %s", arg(*f.To)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func wireStatusValues(s domain.Status) []string {
	if s == domain.StatusDelivery {
		return []string{string(domain.StatusDelivery), "out_for_delivery"}
	}
	return []string{string(s)}
}

func buildSet(f Fields) ([]string, []any) {
	var set []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.Status != nil {
		add("status", *f.Status)
	}
	if f.GuestName != nil {
		add("guest_name", *f.GuestName)
	}
	if f.StayID != nil {
		add("stay_id", *f.StayID)
	}
	if f.TableNumber != nil {
		add("table_number", *f.TableNumber)
	}
	if f.TotalAmount != nil {
		add("total_amount", *f.TotalAmount)
	}
	return set, args
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	var items []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.GuestSessionID, &o.StayID, &o.GuestName, &o.TableNumber,
		&status, &items, &o.TotalAmount, &o.Archived, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	st, err := domain.NormalizeStatus(status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %d: %w", o.ID, err)
	}
	o.Status = st
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return domain.Order{}, fmt.Errorf("order %d items: %w", o.ID, err)
		}
	}
	return o, nil
}
