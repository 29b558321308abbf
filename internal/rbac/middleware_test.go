package rbac_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockgate/internal/policy"
	"github.com/odyssey-erp/stockgate/internal/rbac"
	"github.com/odyssey-erp/stockgate/internal/shared"
	_ "github.com/odyssey-erp/stockgate/testing"
)

type countingObserver struct{ denied int }

func (o *countingObserver) ObserveDecision(kind, action, outcome string) {
	if outcome == shared.OutcomeDenied {
		o.denied++
	}
}

func withRole(t *testing.T, req *http.Request, role policy.Role) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	sm := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "sg", "secret", time.Hour, false)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if role != policy.RoleNone {
		sess.SignIn(3, "user", role, "tok")
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAny(t *testing.T) {
	obs := &countingObserver{}
	mw := rbac.Middleware{Observer: obs}
	guarded := mw.RequireAny(policy.DeleteReceipt, policy.ValidateReceipt)(okHandler())

	cases := []struct {
		role policy.Role
		want int
	}{
		{policy.RoleAdmin, http.StatusNoContent},
		{policy.RoleInventoryManager, http.StatusNoContent},
		{policy.RoleWarehouseStaff, http.StatusForbidden},
		{policy.RoleNone, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		guarded.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodPost, "/", nil), tc.role))
		require.Equal(t, tc.want, rr.Code, tc.role.String())
	}
	require.Equal(t, 1, obs.denied)
}

func TestRequireAll(t *testing.T) {
	mw := rbac.Middleware{}
	guarded := mw.RequireAll(policy.CreateReceipt, policy.DeleteReceipt)(okHandler())

	rr := httptest.NewRecorder()
	guarded.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodPost, "/", nil), policy.RoleWarehouseStaff))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	guarded.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodPost, "/", nil), policy.RoleInventoryManager))
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireWithoutSession(t *testing.T) {
	rr := httptest.NewRecorder()
	rbac.Middleware{}.RequireAny(policy.ViewDashboard)(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func newPermissionsRouter() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/permissions", rbac.NewPermissionsHandler(nil, rbac.Middleware{}).MountRoutes)
	return r
}

func TestPermissionsListRequiresViewUsers(t *testing.T) {
	router := newPermissionsRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodGet, "/api/permissions/", nil), policy.RoleInventoryManager))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodGet, "/api/permissions/", nil), policy.RoleAdmin))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Permissions []struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		} `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Permissions, len(policy.Permissions()))
	for _, row := range body.Permissions {
		if row.Name == "EDIT_SETTINGS" {
			require.Equal(t, []string{"ADMIN"}, row.Roles)
		}
	}
}

func TestPermissionsMine(t *testing.T) {
	router := newPermissionsRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodGet, "/api/permissions/mine", nil), policy.RoleWarehouseStaff))
	require.Equal(t, http.StatusOK, rr.Code)
	var grant struct {
		Role        string   `json:"role"`
		Label       string   `json:"label"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grant))
	require.Equal(t, "WAREHOUSE_STAFF", grant.Role)
	require.Contains(t, grant.Permissions, "CREATE_RECEIPT")
	require.NotContains(t, grant.Permissions, "DELETE_RECEIPT")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withRole(t, httptest.NewRequest(http.MethodGet, "/api/permissions/mine", nil), policy.RoleNone))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &grant))
	require.Empty(t, grant.Permissions)
}

func TestPermissionsCheck(t *testing.T) {
	router := newPermissionsRouter()
	post := func(role policy.Role, body string) rbac.CheckResult {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/permissions/check", strings.NewReader(body))
		router.ServeHTTP(rr, withRole(t, req, role))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var res rbac.CheckResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		return res
	}

	res := post(policy.RoleWarehouseStaff, `{"permissions":["CREATE_RECEIPT","DELETE_RECEIPT"]}`)
	require.True(t, res.Allowed)
	require.False(t, res.Results["DELETE_RECEIPT"])

	res = post(policy.RoleWarehouseStaff, `{"permissions":["CREATE_RECEIPT","DELETE_RECEIPT"],"require_all":true}`)
	require.False(t, res.Allowed)

	res = post(policy.RoleAdmin, `{"permissions":["VIEW_DASHBOARD","LAUNCH_ROCKETS"],"require_all":true}`)
	require.False(t, res.Allowed)
	require.False(t, res.Results["LAUNCH_ROCKETS"])

	res = post(policy.RoleAdmin, `{"permissions":[],"require_all":true}`)
	require.True(t, res.Allowed)
	res = post(policy.RoleAdmin, `{"permissions":[]}`)
	require.False(t, res.Allowed)
	res = post(policy.RoleNone, `{"permissions":[],"require_all":true}`)
	require.False(t, res.Allowed)
}

func TestPermissionsCheckRejectsBadBody(t *testing.T) {
	router := newPermissionsRouter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/permissions/check", strings.NewReader(`{"permissions":[""]}`))
	router.ServeHTTP(rr, withRole(t, req, policy.RoleAdmin))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
