package operations

import (
	"encoding/json"

	"github.com/odyssey-erp/stockgate/internal/stock"
)

// Draft holds the stock-relevant fields of a document, whether typed into a
// form or fetched back from the backend. Movement kinds use Lines; adjustments
// use the single product fields.
type Draft struct {
	Status          string         `json:"status,omitempty"`
	Lines           []DraftLine    `json:"lines,omitempty"`
	Product         int64          `json:"product,omitempty"`
	SystemQuantity  stock.Quantity `json:"system_quantity"`
	CountedQuantity stock.Quantity `json:"counted_quantity"`
}

// DraftLine is one product line of a receipt, delivery or transfer.
type DraftLine struct {
	Product  int64          `json:"product"`
	Quantity stock.Quantity `json:"quantity"`
}

// movementRules is the request shape enforced for receipts, deliveries and
// transfers.
type movementRules struct {
	Lines []lineRules `json:"lines" validate:"required,min=1,max=500,dive"`
}

// lineRules applies per line inside movementRules.
type lineRules struct {
	Product int64 `json:"product" validate:"required,gt=0"`
}

type adjustmentRules struct {
	Product int64 `json:"product" validate:"required,gt=0"`
}

// rulesFor returns an empty rule struct for kind.
func rulesFor(kind Kind) any {
	if kind == KindAdjustment {
		return &adjustmentRules{}
	}
	return &movementRules{}
}

// ParseDraft decodes the stock-relevant fields from raw.
func ParseDraft(raw []byte) (Draft, error) {
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// StockLines turns the draft into stock lines of kind, reading availability from cat.
func (d Draft) StockLines(kind Kind, cat stock.Catalog) []stock.Line {
	if kind == KindAdjustment {
		return []stock.Line{stock.AdjustmentLine(cat, d.Product, d.SystemQuantity, d.CountedQuantity)}
	}
	moves := make([]stock.Movement, 0, len(d.Lines))
	for _, l := range d.Lines {
		moves = append(moves, stock.Movement{ProductID: l.Product, Quantity: l.Quantity})
	}
	return stock.MovementLines(cat, kind.Direction(), moves)
}
