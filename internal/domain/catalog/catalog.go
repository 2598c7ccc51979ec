// Package catalog holds typed views of the backend's catalog payloads.
package catalog

import (
	"regexp"
	"strings"
)

type Category struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID       string  `json:"id,omitempty"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Provider string  `json:"provider,omitempty"`
	Category string  `json:"category,omitempty"`
	Type     string  `json:"type,omitempty"`
	IsActive bool    `json:"is_active"`
}

// ProductTypeGameTopup is the only product type the admin console creates.
const ProductTypeGameTopup = "game_topup"

type PaymentMethod struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Gateway  string `json:"gateway"`
	IsActive bool   `json:"is_active"`
}

type Rating struct {
	ProductID string `json:"product_id"`
	Stars     int    `json:"stars"`
	Comment   string `json:"comment"`
}

// TopEntry is one row of the best-selling ranking.
type TopEntry struct {
	ProductID    string `json:"product_id"`
	ProductTitle string `json:"product_title,omitempty"`
	Orders       int    `json:"orders"`
}

// Label is the product title, or the id when the backend sent no title.
func (e TopEntry) Label() string {
	if e.ProductTitle != "" {
		return e.ProductTitle
	}
	return e.ProductID
}

type RecentOrder struct {
	ID         string  `json:"_id"`
	Status     string  `json:"status"`
	TotalPrice float64 `json:"total_price"`
}

// Overview is the admin monitor summary.
type Overview struct {
	Users         int           `json:"users"`
	Products      int           `json:"products"`
	Orders        int           `json:"orders"`
	Deposits      int           `json:"deposits"`
	PendingOrders int           `json:"pending_orders"`
	PaidOrders    int           `json:"paid_orders"`
	RecentOrders  []RecentOrder `json:"recent_orders"`
}

var whitespace = regexp.MustCompile(`\s+`)

// Slugify lower-cases name and replaces each whitespace run with "-".
func Slugify(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(name), "-")
}
