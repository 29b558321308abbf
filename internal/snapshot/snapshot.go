// Package snapshot keeps the latest known product stock levels that advisory
// stock checks run against.
package snapshot

import (
	"time"

	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/stock"
)

// Snapshot is an immutable view of product stock at FetchedAt.
type Snapshot struct {
	Products  []backend.Product `json:"products"`
	FetchedAt time.Time         `json:"fetched_at"`

	index map[int64]int
}

// New indexes products for lookup.
func New(products []backend.Product, fetchedAt time.Time) *Snapshot {
	s := &Snapshot{Products: products, FetchedAt: fetchedAt, index: make(map[int64]int, len(products))}
	for i, p := range products {
		s.index[p.ID] = i
	}
	return s
}

// Lookup implements stock.Catalog.
func (s *Snapshot) Lookup(productID int64) (stock.Level, bool) {
	if s == nil {
		return stock.Level{}, false
	}
	i, ok := s.index[productID]
	if !ok {
		return stock.Level{}, false
	}
	p := s.Products[i]
	return stock.Level{Available: p.TotalStock, Unit: p.UOMAbbreviation}, true
}

// LowStock lists active products below their minimum level.
func (s *Snapshot) LowStock() []backend.Product {
	if s == nil {
		return nil
	}
	out := make([]backend.Product, 0)
	for _, p := range s.Products {
		if !p.IsActive || !p.TotalStock.Set || !p.MinStockLevel.Set {
			continue
		}
		if p.TotalStock.Value.LessThan(p.MinStockLevel.Value) {
			out = append(out, p)
		}
	}
	return out
}

// Age reports how old the snapshot is relative to now.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}
