package dashboard_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/dashboard"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/rbac"
	"github.com/odyssey-erp/stockgate/internal/shared"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
	_ "github.com/odyssey-erp/stockgate/testing"
)

type dashboardAPI struct {
	kpisDown atomic.Bool
	limit    atomic.Value
}

func (a *dashboardAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/dashboard/kpis/":
		if a.kpisDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"total_products":2,"pending_receipts":1}`)
	case "/api/dashboard/recent-movements/":
		a.limit.Store(r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `[{"id":9,"movement_type":"OUT","product_sku":"BOLT","quantity":"2.000","document_reference":"WH/OUT/0001"}]`)
	case "/api/products/":
		_, _ = io.WriteString(w, `{"results":[
			{"id":1,"sku":"BOLT","name":"Bolt","total_stock":"3.000","min_stock_level":"5.000","uom_abbreviation":"pcs","is_active":true},
			{"id":2,"sku":"NUT","name":"Nut","total_stock":"50.000","min_stock_level":"5.000","uom_abbreviation":"pcs","is_active":true},
			{"id":3,"sku":"OLD","name":"Old","total_stock":"0.000","min_stock_level":"1.000","uom_abbreviation":"pcs","is_active":false}
		],"next":null}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newRouter(t *testing.T, api *dashboardAPI) (http.Handler, *shared.SessionManager) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(srv.URL+"/api", time.Second, nil)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(rdb, "sg", "secret", time.Hour, false)
	snaps := snapshot.NewService(client, snapshot.NewCache(rdb, time.Minute), nil, nil)

	h := dashboard.NewHandler(nil, dashboard.NewService(client, snaps), auth.Relay{Sessions: sessions}, rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/api/dashboard", h.MountRoutes)
	return r, sessions
}

func get(t *testing.T, router http.Handler, sessions *shared.SessionManager, role policy.Role) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if role != policy.RoleNone {
		sess.SignIn(5, "user", role, "tok")
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestDashboardCombinesSources(t *testing.T) {
	api := &dashboardAPI{}
	router, sessions := newRouter(t, api)

	rr := get(t, router, sessions, policy.RoleWarehouseStaff)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var view struct {
		KPIs            map[string]int           `json:"kpis"`
		RecentMovements []backend.Movement       `json:"recent_movements"`
		LowStock        []dashboard.LowStockItem `json:"low_stock"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Equal(t, 2, view.KPIs["total_products"])
	require.Len(t, view.RecentMovements, 1)
	require.Equal(t, "WH/OUT/0001", view.RecentMovements[0].DocumentReference)
	require.Equal(t, []dashboard.LowStockItem{{ID: 1, SKU: "BOLT", Name: "Bolt", OnHand: "3", MinLevel: "5", Unit: "pcs"}}, view.LowStock)
	require.Equal(t, "10", api.limit.Load())
}

func TestDashboardBackendFailure(t *testing.T) {
	api := &dashboardAPI{}
	api.kpisDown.Store(true)
	router, sessions := newRouter(t, api)

	rr := get(t, router, sessions, policy.RoleAdmin)
	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestDashboardRequiresSession(t *testing.T) {
	router, sessions := newRouter(t, &dashboardAPI{})
	rr := get(t, router, sessions, policy.RoleNone)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
