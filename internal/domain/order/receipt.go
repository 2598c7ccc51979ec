package order

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Receipt is what the backend answered to an accepted order.
type Receipt struct {
	ID         string          `json:"id,omitempty"`
	Status     string          `json:"status,omitempty"`
	PaymentURL string          `json:"payment_url,omitempty"`
	Total      float64         `json:"total_price,omitempty"`
	Raw        json.RawMessage `json:"raw"`
}

// ParseReceipt picks the well-known fields out of an order response and keeps the rest verbatim.
func ParseReceipt(payload json.RawMessage) Receipt {
	r := gjson.ParseBytes(payload)
	id := r.Get("id").String()
	if id == "" {
		id = r.Get("_id").String()
	}
	if id == "" {
		id = r.Get("order_id").String()
	}
	var cp json.RawMessage
	if len(payload) > 0 {
		cp = append(cp, payload...)
	}
	return Receipt{
		ID:         id,
		Status:     r.Get("status").String(),
		PaymentURL: r.Get("payment_url").String(),
		Total:      r.Get("total_price").Float(),
		Raw:        cp,
	}
}
