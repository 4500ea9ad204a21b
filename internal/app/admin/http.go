// Package admin exposes the dashboard's HTTP surface: the paged order window,
// bulk and single mutations, and customer summaries.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ordersync/internal/common/httpx"
	"ordersync/internal/common/logger"
	"ordersync/internal/customers"
	"ordersync/internal/domain"
	"ordersync/internal/repository"
	"ordersync/internal/store"
)

type Deps struct {
	Store     *store.Store
	Customers *customers.Service
	Writer    repository.OrderWriter
	Log       *logger.Logger
}

func Run(ctx context.Context, port int, d Deps) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", d.handleOrders)
	mux.HandleFunc("/orders/status", d.handleBulkStatus)
	mux.HandleFunc("/orders/advance", d.handleAdvance)
	mux.HandleFunc("/orders/update", d.handleUpdate)
	mux.HandleFunc("/orders/delete", d.handleDelete)
	mux.HandleFunc("/customers", d.handleCustomers)

	srv := httpx.New(":"+strconv.Itoa(port), mux)
	return srv.Run(ctx)
}

func (d Deps) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		d.listOrders(w, r)
	case http.MethodPost:
		d.createOrder(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d Deps) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.Filters{Search: q.Get("search")}
	if raw := q.Get("status"); raw != "" {
		st, err := domain.NormalizeStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filters.Status = st
	}
	if from, ok := parseTime(q.Get("from")); ok {
		filters.From = &from
	}
	if to, ok := parseTime(q.Get("to")); ok {
		filters.To = &to
	}
	reset := q.Get("reset") != "false"

	page, err := d.Store.Load(r.Context(), filters, reset)
	if err != nil {
		// prior good state is retained; the dashboard keeps its last list
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": page.Rows, "has_more": page.HasMore})
}

func (d Deps) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	items := domain.ConvertItems(req.Items)
	total, err := domain.ValidateItems(items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := d.Writer.CreateOrder(r.Context(), domain.Order{
		UserID:         req.UserID,
		GuestSessionID: req.GuestSessionID,
		StayID:         req.StayID,
		GuestName:      req.GuestName,
		TableNumber:    req.TableNumber,
		Status:         domain.StatusNew,
		Items:          items,
		TotalAmount:    total,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.CreateOrderResponse{
		ID: created.ID, Status: string(created.Status), TotalAmount: created.TotalAmount,
	})
	d.Log.Debug("order_received", map[string]any{"order_id": created.ID, "total": created.TotalAmount})
}

func (d Deps) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		OrderIDs []int64 `json:"order_ids"`
		Status   string  `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	res, err := d.Store.BulkUpdateStatus(r.Context(), req.OrderIDs, req.Status)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requested":      len(res.Requested),
		"affected_count": len(res.Confirmed),
		"confirmed_ids":  res.Confirmed,
		"partial":        res.Partial(),
	})
}

func (d Deps) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		OrderID int64 `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	row, err := d.Store.AdvanceStatus(r.Context(), req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (d Deps) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		OrderID     int64    `json:"order_id"`
		Status      *string  `json:"status,omitempty"`
		GuestName   *string  `json:"guest_name,omitempty"`
		StayID      *string  `json:"stay_id,omitempty"`
		TableNumber *int     `json:"table_number,omitempty"`
		TotalAmount *float64 `json:"total_amount,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	row, err := d.Store.UpdateOrder(r.Context(), req.OrderID, repository.Fields{
		Status:      req.Status,
		GuestName:   req.GuestName,
		StayID:      req.StayID,
		TableNumber: req.TableNumber,
		TotalAmount: req.TotalAmount,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (d Deps) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		OrderIDs []int64 `json:"order_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("bad json"))
		return
	}
	if err := d.Store.DeleteOrders(r.Context(), req.OrderIDs); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	query := customers.Query{
		IncludeArchived: q.Get("include_archived") == "true",
		Sort:            customers.SortKey(q.Get("sort")),
		Desc:            q.Get("desc") == "true",
		Search:          q.Get("search"),
	}
	out, err := d.Customers.List(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": out})
}

func statusFor(err error) int {
	var unknown domain.ErrUnknownStatus
	if errors.As(err, &unknown) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
