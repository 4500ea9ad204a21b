package domain

type CreateOrderItem struct {
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Price    float64  `json:"price"`
	Options  []string `json:"options,omitempty"`
}

type CreateOrderRequest struct {
	UserID         *string           `json:"user_id,omitempty"`
	GuestSessionID *string           `json:"guest_session_id,omitempty"`
	StayID         *string           `json:"stay_id,omitempty"`
	GuestName      *string           `json:"guest_name,omitempty"`
	TableNumber    *int              `json:"table_number,omitempty"`
	Items          []CreateOrderItem `json:"items"`
}

type CreateOrderResponse struct {
	ID          int64   `json:"id"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"total_amount"`
}

func ConvertItems(items []CreateOrderItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity, Options: it.Options})
	}
	return out
}
