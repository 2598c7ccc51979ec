package pricing

import (
	"math"
	"strconv"
	"strings"
)

// Defaults substituted for blank or malformed form input.
const (
	DefaultPrice      = 0
	DefaultQuantity   = 1
	DefaultFeePercent = 0
	DefaultFeeFlat    = 0
)

// RawInput is calculator or order-form input exactly as typed.
type RawInput struct {
	Price      string
	Quantity   string
	FeePercent string
	FeeFlat    string
}

// Input is RawInput after normalisation; every field is finite.
type Input struct {
	Price      float64 `json:"price"`
	Quantity   float64 `json:"amount"`
	FeePercent float64 `json:"fee_percent"`
	FeeFlat    float64 `json:"fee_flat"`
}

// ParseNumber reads a decimal number, ignoring surrounding blanks.
// Blank, malformed and non-finite values report ok == false.
func ParseNumber(s string) (v float64, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

// Normalize substitutes the documented defaults for anything unusable.
// A quantity below 1 is unusable; negative fees are kept.
func Normalize(in RawInput) Input {
	out := Input{
		Price:      DefaultPrice,
		Quantity:   DefaultQuantity,
		FeePercent: DefaultFeePercent,
		FeeFlat:    DefaultFeeFlat,
	}
	if v, ok := ParseNumber(in.Price); ok && v >= 0 {
		out.Price = v
	}
	if v, ok := ParseNumber(in.Quantity); ok && v >= 1 {
		out.Quantity = v
	}
	if v, ok := ParseNumber(in.FeePercent); ok {
		out.FeePercent = v
	}
	if v, ok := ParseNumber(in.FeeFlat); ok {
		out.FeeFlat = v
	}
	return out
}

// Quantity normalises an order quantity to a whole number of units, at least 1.
func Quantity(s string) int {
	v, ok := ParseNumber(s)
	if !ok || v < 1 {
		return DefaultQuantity
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

// Quote runs Compute over the normalised input.
func (in Input) Quote() Quote {
	return Compute(in.Price, in.Quantity, in.FeePercent, in.FeeFlat)
}

// QuoteRaw normalises in and computes its quote.
func QuoteRaw(in RawInput) Quote {
	return Normalize(in).Quote()
}
