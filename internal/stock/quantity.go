package stock

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is an optional exact decimal. Missing or non-numeric input leaves
// Set false instead of failing, so a half-typed form never blocks.
type Quantity struct {
	Value decimal.Decimal
	Set   bool
}

// Qty builds a set Quantity from its decimal text. Invalid text yields an
// unset Quantity.
func Qty(raw string) Quantity {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Quantity{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Quantity{}
	}
	return Quantity{Value: d, Set: true}
}

// QtyOf wraps an existing decimal.
func QtyOf(d decimal.Decimal) Quantity {
	return Quantity{Value: d, Set: true}
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes to an unset Quantity without error.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*q = Quantity{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*q = Qty(s)
		return nil
	}
	*q = Qty(string(data))
	return nil
}

// MarshalJSON encodes a set Quantity as a decimal string and an unset one as null.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.Set {
		return []byte("null"), nil
	}
	return json.Marshal(q.Value.String())
}

func (q Quantity) String() string {
	if !q.Set {
		return ""
	}
	return FormatQuantity(q.Value)
}

// FormatQuantity renders a stock quantity with at most three decimals and no
// trailing zeros.
func FormatQuantity(d decimal.Decimal) string {
	return d.Round(3).String()
}

// FormatAmount renders a monetary amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
