// Package stock holds the advisory stock-sufficiency check run before any
// stock-decreasing document is submitted. The backend re-validates every
// mutation against its own ledger; results here only warn early.
package stock

// Direction classifies how a line moves stock.
type Direction string

const (
	// Inbound lines add stock and are never checked.
	Inbound Direction = "INBOUND"
	// Outbound lines remove stock (deliveries, transfer sources).
	Outbound Direction = "OUTBOUND"
	// AdjustUp lines raise the recorded quantity and are never checked.
	AdjustUp Direction = "ADJUST_UP"
	// AdjustDown lines lower the recorded quantity after a count.
	AdjustDown Direction = "ADJUST_DOWN"
)

// Line is one proposed quantity change against a product.
type Line struct {
	ProductID int64     `json:"product_id"`
	Available Quantity  `json:"available_stock"`
	Unit      string    `json:"unit_abbreviation,omitempty"`
	Proposed  Quantity  `json:"proposed_quantity"`
	System    Quantity  `json:"system_quantity"`
	Counted   Quantity  `json:"counted_quantity"`
	Direction Direction `json:"direction"`
}

// Result is the outcome of checking one line.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// FormResult aggregates line results for a whole document.
type FormResult struct {
	Valid  bool           `json:"valid"`
	Errors map[int]string `json:"errors,omitempty"`
}

// Level is the known stock of a product at snapshot time.
type Level struct {
	Available Quantity
	Unit      string
}

// Catalog resolves stock levels by product ID.
type Catalog interface {
	Lookup(productID int64) (Level, bool)
}
