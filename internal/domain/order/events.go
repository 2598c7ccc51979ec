package order

import "time"

// OrderSubmittedEvent is emitted once the backend accepted an order.
// Views showing order aggregates (admin overview, top rank) refresh on it.
type OrderSubmittedEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	Provider   string
	OccurredAt time.Time
}

func (OrderSubmittedEvent) EventName() string { return "order.submitted" }

func NewOrderSubmittedEvent(d Draft, r Receipt) OrderSubmittedEvent {
	return OrderSubmittedEvent{
		OrderID:    r.ID,
		ProductID:  d.ProductID,
		Quantity:   d.Quantity,
		Provider:   d.Provider,
		OccurredAt: time.Now().UTC(),
	}
}
