package domain

type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// OrderEvent is one push notification from the backing store: a row changed.
type OrderEvent struct {
	Kind EventKind `json:"kind"`
	Row  Order     `json:"row"`
}

// Normalize applies status normalization to the event's row. Called at every
// ingestion boundary so no un-normalized literal escapes into held state.
func (e *OrderEvent) Normalize() error {
	st, err := NormalizeStatus(string(e.Row.Status))
	if err != nil {
		return err
	}
	e.Row.Status = st
	return nil
}
