package domain

import (
	"errors"
	"fmt"
	"time"
)

// Order is one row of the orders collection. Exactly one of UserID or
// (GuestSessionID, StayID) identifies the owner.
type Order struct {
	ID             int64       `json:"id"`
	UserID         *string     `json:"user_id,omitempty"`
	GuestSessionID *string     `json:"guest_session_id,omitempty"`
	StayID         *string     `json:"stay_id,omitempty"`
	GuestName      *string     `json:"guest_name,omitempty"`
	TableNumber    *int        `json:"table_number,omitempty"`
	Status         Status      `json:"status"`
	Items          []OrderItem `json:"items"`
	TotalAmount    float64     `json:"total_amount"`
	Archived       bool        `json:"archived"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type OrderItem struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
	Options  []string `json:"options,omitempty"`
}

// OwnerKey returns the string that identifies this order's customer:
// the account UUID for authenticated orders, the stay id for guest orders.
// Empty when neither is set (data anomaly, excluded from aggregation).
func (o Order) OwnerKey() string {
	if o.UserID != nil && *o.UserID != "" {
		return *o.UserID
	}
	if o.StayID != nil && *o.StayID != "" {
		return *o.StayID
	}
	return ""
}

// ValidateItems checks an order's line items before it is written and
// returns the total they sum to.
func ValidateItems(items []OrderItem) (float64, error) {
	if len(items) == 0 {
		return 0, errors.New("at least one item is required")
	}
	total := 0.0
	for _, item := range items {
		if item.Name == "" {
			return 0, errors.New("item name is required")
		}
		if item.Quantity <= 0 {
			return 0, fmt.Errorf("invalid quantity for item %s", item.Name)
		}
		if item.Price <= 0 {
			return 0, fmt.Errorf("invalid price for item %s", item.Name)
		}
		total += float64(item.Quantity) * item.Price
	}
	return total, nil
}
