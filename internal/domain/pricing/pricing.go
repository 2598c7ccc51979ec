// Package pricing computes order totals. The same function backs the live
// calculator and the order about to be submitted, and the backend's
// /tools/calc endpoint is expected to agree with it bit for bit.
package pricing

import "math"

// Quote is the unrounded result of a computation; rounding is left to display code.
type Quote struct {
	Subtotal float64 `json:"base"`
	Total    float64 `json:"total"`
}

// Compute returns subtotal = price × quantity and
// total = subtotal × (1 + feePercent/100) + feeFlat.
//
// Inputs are neutralised rather than rejected: a quantity below 1 or not
// finite counts as 1, non-finite fees count as 0, and a negative or
// non-finite price counts as 0.
func Compute(price, quantity, feePercent, feeFlat float64) Quote {
	price = nonNegative(price)
	quantity = atLeastOne(quantity)
	feePercent = finiteOrZero(feePercent)
	feeFlat = finiteOrZero(feeFlat)

	subtotal := price * quantity
	return Quote{
		Subtotal: subtotal,
		Total:    subtotal*(1+feePercent/100) + feeFlat,
	}
}

// Same reports whether two quotes are identical, the parity check against the backend.
func Same(a, b Quote) bool {
	return a.Subtotal == b.Subtotal && a.Total == b.Total
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteOrZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	if !finite(v) || v < 0 {
		return 0
	}
	return v
}

func atLeastOne(v float64) float64 {
	if !finite(v) || v < 1 {
		return 1
	}
	return v
}
