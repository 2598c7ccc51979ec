// Package order assembles purchase intents right before they are sent to the backend.
package order

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/vechnost/storefront/internal/domain/pricing"
)

// DefaultProvider is used when the selected product is unknown or carries no provider tag.
const DefaultProvider = "manual"

// Form is the order form as currently filled in.
type Form struct {
	ProductID         string
	Quantity          string
	TargetID          string
	PaymentMethodCode string
}

// Draft is the assembled, not-yet-submitted order. Optional fields marshal as null.
type Draft struct {
	ProductID         string  `json:"product_id"`
	Quantity          int     `json:"amount"`
	TargetID          *string `json:"target_id"`
	PaymentMethodCode *string `json:"payment_method_code"`
	Provider          string  `json:"provider"`
}

// Resolve builds a Draft from the form and the products payload the form was rendered from.
// The payload is a JSON array of products; it may be nil when products never loaded.
func Resolve(form Form, products json.RawMessage) Draft {
	return Draft{
		ProductID:         form.ProductID,
		Quantity:          pricing.Quantity(form.Quantity),
		TargetID:          optional(form.TargetID),
		PaymentMethodCode: optional(form.PaymentMethodCode),
		Provider:          ProviderOf(products, form.ProductID),
	}
}

// ProviderOf returns the provider tag of product id within products, or DefaultProvider.
func ProviderOf(products json.RawMessage, id string) string {
	if id == "" || !gjson.ValidBytes(products) {
		return DefaultProvider
	}
	provider := DefaultProvider
	gjson.ParseBytes(products).ForEach(func(_, p gjson.Result) bool {
		if p.Get("id").String() != id {
			return true
		}
		if tag := p.Get("provider").String(); tag != "" {
			provider = tag
		}
		return false
	})
	return provider
}

// FirstProductID is the id of the first product in products, or "".
func FirstProductID(products json.RawMessage) string {
	if !gjson.ValidBytes(products) {
		return ""
	}
	return gjson.GetBytes(products, "0.id").String()
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
