// Package dashboard assembles the landing view: backend KPIs, the latest stock
// movements and the products at or below their minimum level.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
)

const recentMovements = 10

// Backend is the subset of the inventory API the dashboard reads.
type Backend interface {
	DashboardKPIs(ctx context.Context, token string) (json.RawMessage, error)
	RecentMovements(ctx context.Context, token string, limit int) ([]backend.Movement, error)
}

// Snapshots serves the current stock snapshot.
type Snapshots interface {
	Current(ctx context.Context, token string) (*snapshot.Snapshot, error)
}

// LowStockItem is one product under its minimum level.
type LowStockItem struct {
	ID       int64  `json:"id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	OnHand   string `json:"on_hand"`
	MinLevel string `json:"min_level"`
	Unit     string `json:"unit"`
}

// View is the dashboard payload.
type View struct {
	KPIs            json.RawMessage    `json:"kpis"`
	RecentMovements []backend.Movement `json:"recent_movements"`
	LowStock        []LowStockItem     `json:"low_stock"`
	SnapshotAt      time.Time          `json:"snapshot_at"`
}

// Service loads dashboard data concurrently.
type Service struct {
	backend   Backend
	snapshots Snapshots
}

// NewService constructs the dashboard service.
func NewService(b Backend, snapshots Snapshots) *Service {
	return &Service{backend: b, snapshots: snapshots}
}

// Load fans out to the backend and the snapshot. Any failure fails the view.
func (s *Service) Load(ctx context.Context, token string) (View, error) {
	var view View
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		kpis, err := s.backend.DashboardKPIs(ctx, token)
		if err != nil {
			return err
		}
		view.KPIs = kpis
		return nil
	})

	g.Go(func() error {
		moves, err := s.backend.RecentMovements(ctx, token, recentMovements)
		if err != nil {
			return err
		}
		view.RecentMovements = moves
		return nil
	})

	g.Go(func() error {
		snap, err := s.snapshots.Current(ctx, token)
		if err != nil {
			return err
		}
		view.LowStock = lowStock(snap)
		view.SnapshotAt = snap.FetchedAt
		return nil
	})

	if err := g.Wait(); err != nil {
		return View{}, err
	}
	if view.RecentMovements == nil {
		view.RecentMovements = []backend.Movement{}
	}
	return view, nil
}

func lowStock(snap *snapshot.Snapshot) []LowStockItem {
	products := snap.LowStock()
	out := make([]LowStockItem, 0, len(products))
	for _, p := range products {
		out = append(out, LowStockItem{
			ID:       p.ID,
			SKU:      p.SKU,
			Name:     p.Name,
			OnHand:   p.TotalStock.String(),
			MinLevel: p.MinStockLevel.String(),
			Unit:     p.UOMAbbreviation,
		})
	}
	return out
}
