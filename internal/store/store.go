// Package store holds a dashboard's working set of orders: a paginated window
// over the server-side collection, reconciled against push events and
// optimistic local edits.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ordersync/internal/common/logger"
	"ordersync/internal/domain"
	"ordersync/internal/feed"
	"ordersync/internal/registry"
	"ordersync/internal/repository"
)

// WriteState is the visible lifecycle of an optimistic local edit. A rejected
// row keeps its optimistic value until the caller reloads; rollback is the
// caller's decision, not the store's.
type WriteState string

const (
	WriteTentative WriteState = "tentative"
	WriteConfirmed WriteState = "confirmed"
	WriteRejected  WriteState = "rejected"
)

type Page struct {
	Rows    []domain.Order
	HasMore bool
}

type BulkResult struct {
	Requested []int64
	Confirmed []int64
}

// Partial reports whether some requested ids were not confirmed.
func (r BulkResult) Partial() bool { return len(r.Confirmed) < len(r.Requested) }

const DefaultPageSize = 20

type Option func(*Store)

func WithPageSize(n int) Option { return func(s *Store) { s.pageSize = n } }

// WithDebouncedReload switches push reconciliation from in-place patching to
// coalesced full reset-reloads. The admin dashboard uses this: patching a
// filtered partial window can disagree with what a full reload would show.
func WithDebouncedReload(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

type Store struct {
	querier repository.OrderQuerier
	writer  repository.OrderWriter
	reg     *registry.Registry
	lg      *logger.Logger

	pageSize int
	debounce time.Duration

	mu      sync.Mutex
	rows    []domain.Order
	states  map[int64]WriteState
	filters repository.Filters
	offset  int
	hasMore bool
	loadSeq uint64
	pending *time.Timer
	unsub   func()
}

func New(q repository.OrderQuerier, w repository.OrderWriter, reg *registry.Registry, lg *logger.Logger, opts ...Option) *Store {
	s := &Store{
		querier:  q,
		writer:   w,
		reg:      reg,
		lg:       lg,
		pageSize: DefaultPageSize,
		states:   make(map[int64]WriteState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes the store to its topic's push feed. Stop undoes it.
func (s *Store) Start(ctx context.Context, f feed.TopicFilter) error {
	unsub, err := s.reg.Subscribe(ctx, f, s.onEvent)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", f.Topic, err)
	}
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

func (s *Store) Stop() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Load fetches one page. With reset it replaces the held collection and
// rewinds to offset 0; otherwise it appends from the current cursor. The
// cursor advances one page only when a full page came back. A response that
// arrives after a newer Load has started is discarded (last request wins) and
// the current held state is returned instead.
func (s *Store) Load(ctx context.Context, f repository.Filters, reset bool) (Page, error) {
	s.mu.Lock()
	if reset {
		s.filters = f
		s.offset = 0
	}
	s.loadSeq++
	seq := s.loadSeq
	offset := s.offset
	filters := s.filters
	limit := s.pageSize
	s.mu.Unlock()

	rows, err := s.querier.QueryOrders(ctx, offset, limit, filters)
	if err != nil {
		// prior good state stays untouched
		return Page{}, fmt.Errorf("query orders: %w", err)
	}
	for i := range rows {
		if nerr := normalizeRow(&rows[i]); nerr != nil {
			return Page{}, nerr
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loadSeq {
		return s.pageLocked(), nil
	}
	if reset {
		s.rows = rows
		s.states = make(map[int64]WriteState)
	} else {
		// a push insert since the last page shifts server-side offsets, so a
		// fetched page can re-return rows the window already holds
		held := make(map[int64]bool, len(s.rows))
		for _, row := range s.rows {
			held[row.ID] = true
		}
		for _, row := range rows {
			if !held[row.ID] {
				s.rows = append(s.rows, row)
			}
		}
	}
	s.hasMore = len(rows) == limit
	if s.hasMore {
		s.offset = offset + limit
	}
	return s.pageLocked(), nil
}

// ApplyFilter always reset-loads: filtering the partial window in memory
// would hide rows that exist server-side but were never fetched.
func (s *Store) ApplyFilter(ctx context.Context, f repository.Filters) (Page, error) {
	return s.Load(ctx, f, true)
}

func (s *Store) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked()
}

func (s *Store) pageLocked() Page {
	rows := make([]domain.Order, len(s.rows))
	copy(rows, s.rows)
	return Page{Rows: rows, HasMore: s.hasMore}
}

// RowState reports the write state of an optimistic edit, if any.
func (s *Store) RowState(id int64) WriteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

func (s *Store) onEvent(ev domain.OrderEvent) {
	if s.debounce > 0 {
		s.scheduleReload()
		return
	}
	s.mu.Lock()
	s.applyLocked(ev)
	s.mu.Unlock()
}

// scheduleReload coalesces a burst of push events into one reset-reload.
func (s *Store) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return
	}
	s.pending = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.pending = nil
		filters := s.filters
		s.mu.Unlock()
		if _, err := s.Load(context.Background(), filters, true); err != nil {
			s.lg.Error("debounced_reload", err, nil)
		}
	})
}

// applyLocked reconciles one push event against the held window. Updates
// replace in place (rows keep their position); inserts for unseen ids prepend,
// new orders surface at the top of a most-recent-first view.
func (s *Store) applyLocked(ev domain.OrderEvent) {
	if ev.Kind != domain.EventDelete {
		if err := ev.Normalize(); err != nil {
			s.lg.Error("event_status", err, map[string]any{"order_id": ev.Row.ID})
			return
		}
	}
	switch ev.Kind {
	case domain.EventDelete:
		for i, row := range s.rows {
			if row.ID == ev.Row.ID {
				s.rows = append(s.rows[:i], s.rows[i+1:]...)
				delete(s.states, row.ID)
				break
			}
		}
	case domain.EventInsert, domain.EventUpdate:
		for i, row := range s.rows {
			if row.ID == ev.Row.ID {
				s.rows[i] = ev.Row
				return
			}
		}
		if ev.Kind == domain.EventInsert {
			s.rows = append([]domain.Order{ev.Row}, s.rows...)
		}
	}
}

// UpdateOrder is an optimistic edit: the new values land in the held row
// immediately (tentative), then the persisting write runs. On failure the row
// is marked rejected and the error surfaces; the optimistic value stays until
// the caller reloads.
func (s *Store) UpdateOrder(ctx context.Context, id int64, fields repository.Fields) (domain.Order, error) {
	if fields.Status != nil {
		if _, err := domain.NormalizeStatus(*fields.Status); err != nil {
			return domain.Order{}, err
		}
	}

	s.mu.Lock()
	held := false
	for i := range s.rows {
		if s.rows[i].ID == id {
			applyFields(&s.rows[i], fields, time.Now())
			s.states[id] = WriteTentative
			held = true
			break
		}
	}
	s.mu.Unlock()

	updated, err := s.writer.UpdateOrder(ctx, id, fields)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if held {
			s.states[id] = WriteRejected
		}
		return domain.Order{}, fmt.Errorf("update order %d: %w", id, err)
	}
	if nerr := normalizeRow(&updated); nerr != nil {
		if held {
			s.states[id] = WriteRejected
		}
		return domain.Order{}, nerr
	}
	// write state only ever describes a held row; an edit outside the window
	// still persists but leaves the window and states untouched
	if held {
		for i := range s.rows {
			if s.rows[i].ID == id {
				s.rows[i] = updated
				break
			}
		}
		s.states[id] = WriteConfirmed
	}
	return updated, nil
}

// AdvanceStatus moves an order one step forward in its lifecycle. Advancing a
// terminal order is a no-op.
func (s *Store) AdvanceStatus(ctx context.Context, id int64) (domain.Order, error) {
	s.mu.Lock()
	var current *domain.Order
	for i := range s.rows {
		if s.rows[i].ID == id {
			current = &s.rows[i]
			break
		}
	}
	if current == nil {
		s.mu.Unlock()
		return domain.Order{}, fmt.Errorf("order %d not held", id)
	}
	next := current.Status.Next()
	if next == current.Status {
		row := *current
		s.mu.Unlock()
		return row, nil
	}
	s.mu.Unlock()

	raw := string(next)
	return s.UpdateOrder(ctx, id, repository.Fields{Status: &raw})
}

// BulkUpdateStatus sets one status across many orders in a single persisting
// write. Unknown statuses are rejected before the write. Local state is
// updated only for ids the backing store confirmed; a partial result is
// success-with-count, not an error.
func (s *Store) BulkUpdateStatus(ctx context.Context, ids []int64, raw string) (BulkResult, error) {
	status, err := domain.NormalizeStatus(raw)
	if err != nil {
		return BulkResult{}, err
	}

	confirmed, err := s.writer.UpdateOrderStatus(ctx, ids, status)
	if err != nil {
		return BulkResult{Requested: ids}, fmt.Errorf("bulk status update: %w", err)
	}

	now := time.Now()
	s.mu.Lock()
	confirmedSet := make(map[int64]bool, len(confirmed))
	for _, id := range confirmed {
		confirmedSet[id] = true
	}
	for i := range s.rows {
		if confirmedSet[s.rows[i].ID] {
			s.rows[i].Status = status
			s.rows[i].UpdatedAt = now
			s.states[s.rows[i].ID] = WriteConfirmed
		}
	}
	s.mu.Unlock()

	res := BulkResult{Requested: ids, Confirmed: confirmed}
	if res.Partial() {
		s.lg.Info("bulk_update_partial", map[string]any{
			"requested": len(ids), "affected": len(confirmed),
		})
	}
	return res, nil
}

// DeleteOrders removes orders from the backing store, then from the window.
func (s *Store) DeleteOrders(ctx context.Context, ids []int64) error {
	if err := s.writer.DeleteOrders(ctx, ids); err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	s.mu.Lock()
	kept := s.rows[:0]
	for _, row := range s.rows {
		if !set[row.ID] {
			kept = append(kept, row)
		} else {
			delete(s.states, row.ID)
		}
	}
	s.rows = kept
	s.mu.Unlock()
	return nil
}

func normalizeRow(o *domain.Order) error {
	st, err := domain.NormalizeStatus(string(o.Status))
	if err != nil {
		return fmt.Errorf("order %d: %w", o.ID, err)
	}
	o.Status = st
	return nil
}

func applyFields(o *domain.Order, f repository.Fields, now time.Time) {
	if f.Status != nil {
		// validated by the caller; cannot fail here
		_ = domain.ApplyStatus(o, *f.Status, now)
	}
	if f.GuestName != nil {
		o.GuestName = f.GuestName
	}
	if f.StayID != nil {
		o.StayID = f.StayID
	}
	if f.TableNumber != nil {
		o.TableNumber = f.TableNumber
	}
	if f.TotalAmount != nil {
		o.TotalAmount = *f.TotalAmount
	}
	o.UpdatedAt = now
}
