package operations_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockgate/internal/auth"
	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/operations"
	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/shared"
	"github.com/odyssey-erp/stockgate/internal/snapshot"
	_ "github.com/odyssey-erp/stockgate/testing"
)

type inventoryAPI struct {
	productLoads atomic.Int32
	creates      atomic.Int32
	expired      atomic.Bool
}

func (a *inventoryAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if a.expired.Load() {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch {
	case r.URL.Path == "/api/products/":
		a.productLoads.Add(1)
		_, _ = io.WriteString(w, `{"results":[{"id":1,"sku":"BOLT","total_stock":"10.000","uom_abbreviation":"pcs","is_active":true}],"next":null}`)
	case r.URL.Path == "/api/deliveries/" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"results":[{"id":3,"status":"DRAFT"}],"next":null,"query":"`+r.URL.RawQuery+`"}`)
	case r.URL.Path == "/api/deliveries/" && r.Method == http.MethodPost:
		a.creates.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":3,"status":"DRAFT"}`)
	case r.URL.Path == "/api/deliveries/3/":
		_, _ = io.WriteString(w, `{"id":3,"status":"READY","lines":[{"product":1,"quantity":"2.000"}]}`)
	case r.URL.Path == "/api/deliveries/3/validate_delivery/":
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"Insufficient stock for BOLT at WH/Stock"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	api      *inventoryAPI
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := &inventoryAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(srv.URL+"/api", time.Second, nil)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(rdb, "sg", "secret", time.Hour, false)
	snaps := snapshot.NewService(client, snapshot.NewCache(rdb, time.Minute), nil, nil)

	svc := operations.NewService(client, snaps, shared.NewAuditLogger(nil), nil, nil)
	handler := operations.NewHandler(nil, svc, auth.Relay{Sessions: sessions})
	r := chi.NewRouter()
	r.Route("/api", handler.MountRoutes)
	return &harness{router: r, sessions: sessions, api: api}
}

func (h *harness) session(t *testing.T, role policy.Role) *shared.Session {
	t.Helper()
	sess, err := h.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn(11, "user", role, "tok")
	return sess
}

func (h *harness) do(t *testing.T, sess *shared.Session, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

type problem struct {
	Title  string          `json:"title"`
	Status int             `json:"status"`
	Detail string          `json:"detail"`
	Errors json.RawMessage `json:"errors"`
}

func decodeProblem(t *testing.T, rr *httptest.ResponseRecorder) problem {
	t.Helper()
	var p problem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p), rr.Body.String())
	return p
}

func TestCreateDeliveryOverdrawIs422(t *testing.T) {
	h := newHarness(t)
	sess := h.session(t, policy.RoleWarehouseStaff)

	rr := h.do(t, sess, http.MethodPost, "/api/deliveries", `{"lines":[{"product":1,"quantity":"4"},{"product":1,"quantity":"12.5"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	p := decodeProblem(t, rr)
	require.JSONEq(t, `{"1":"Insufficient stock! Available: 10 pcs"}`, string(p.Errors))
	require.Zero(t, h.api.creates.Load())

	rr = h.do(t, sess, http.MethodPost, "/api/deliveries", `{"lines":[{"product":1,"quantity":"10"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"id":3,"status":"DRAFT"}`, rr.Body.String())
	require.Equal(t, int32(1), h.api.creates.Load())

	rr = h.do(t, sess, http.MethodPost, "/api/deliveries", `{"lines":[{"product":1,"quantity":"1"}]}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, int32(2), h.api.productLoads.Load(), "snapshot reloads after a forwarded create")
}

func TestValidateRelaysBackendConflict(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, h.session(t, policy.RoleInventoryManager), http.MethodPost, "/api/deliveries/3/validate", "")
	require.Equal(t, http.StatusConflict, rr.Code)
	p := decodeProblem(t, rr)
	require.Equal(t, "Insufficient stock for BOLT at WH/Stock", p.Detail)
}

func TestStaffCannotValidate(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, h.session(t, policy.RoleWarehouseStaff), http.MethodPost, "/api/deliveries/3/validate", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListProxiesQuery(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, h.session(t, policy.RoleWarehouseStaff), http.MethodGet, "/api/deliveries?status=DRAFT", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"query":"status=DRAFT"`)
}

func TestBadDocumentID(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, h.session(t, policy.RoleAdmin), http.MethodDelete, "/api/transfers/abc", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStockCheckEndpoint(t *testing.T) {
	h := newHarness(t)
	sess := h.session(t, policy.RoleWarehouseStaff)

	rr := h.do(t, sess, http.MethodPost, "/api/stock/check", `{"kind":"delivery","lines":[{"product":1,"quantity":"10.01"}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out struct {
		Valid  bool              `json:"valid"`
		Errors map[string]string `json:"errors"`
		Lines  []json.RawMessage `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.False(t, out.Valid)
	require.Equal(t, "Insufficient stock! Available: 10 pcs", out.Errors["0"])
	require.Len(t, out.Lines, 1)

	rr = h.do(t, sess, http.MethodPost, "/api/stock/check", `{"kind":"invoice"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExpiredTokenEndsSession(t *testing.T) {
	h := newHarness(t)
	sess := h.session(t, policy.RoleAdmin)
	h.api.expired.Store(true)

	rr := h.do(t, sess, http.MethodGet, "/api/receipts", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	res := httptest.NewRecorder()
	require.NoError(t, h.sessions.Commit(context.Background(), res, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}
