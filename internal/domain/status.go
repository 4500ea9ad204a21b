package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivery  Status = "delivery"
	StatusCompleted Status = "completed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// wireOutForDelivery is the literal the backing store uses for rows that are
// out for delivery. It never leaves this package un-normalized.
const wireOutForDelivery = "out_for_delivery"

var statusOrder = []Status{
	StatusNew, StatusPreparing, StatusReady, StatusDelivery, StatusCompleted, StatusPaid,
}

// ErrUnknownStatus is returned for status strings outside the enum.
type ErrUnknownStatus struct{ Raw string }

func (e ErrUnknownStatus) Error() string { return fmt.Sprintf("unknown order status %q", e.Raw) }

// NormalizeStatus maps a raw status string to the domain enum. The backing
// store's "out_for_delivery" becomes StatusDelivery; every other value must
// already be a member of the enum.
func NormalizeStatus(raw string) (Status, error) {
	if raw == wireOutForDelivery {
		return StatusDelivery, nil
	}
	s := Status(raw)
	switch s {
	case StatusNew, StatusPreparing, StatusReady, StatusDelivery, StatusCompleted, StatusPaid, StatusCancelled:
		return s, nil
	}
	return "", ErrUnknownStatus{Raw: raw}
}

// Next returns the single allowed forward transition. Terminal states
// (paid, cancelled) return themselves: advancing an already-terminal order
// is a no-op, not an error.
func (s Status) Next() Status {
	for i, st := range statusOrder {
		if st == s && i+1 < len(statusOrder) {
			return statusOrder[i+1]
		}
	}
	return s
}

// ApplyStatus sets an order's status to the requested raw value. Any member
// of the enum is accepted (an administrator may set any status at any time);
// unknown values are rejected before the order is touched. A successful
// apply advances UpdatedAt.
func ApplyStatus(o *Order, raw string, now time.Time) error {
	st, err := NormalizeStatus(raw)
	if err != nil {
		return err
	}
	o.Status = st
	o.UpdatedAt = now
	return nil
}
