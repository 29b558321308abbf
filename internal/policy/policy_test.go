package policy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableIsComplete(t *testing.T) {
	perms := Permissions()
	require.Len(t, perms, 48)
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		require.NotEmpty(t, p.String())
		require.NotEmpty(t, p.Roles(), "permission %s has no roles", p)
		_, dup := seen[p.String()]
		require.False(t, dup, "duplicate permission name %s", p)
		seen[p.String()] = struct{}{}

		parsed, ok := ParsePermission(p.String())
		require.True(t, ok)
		require.Equal(t, p, parsed)
	}
}

func TestIsAllowedMatchesTable(t *testing.T) {
	for _, p := range Permissions() {
		allowed := make(map[Role]bool)
		for _, r := range p.Roles() {
			allowed[r] = true
		}
		for _, r := range Roles() {
			require.Equal(t, allowed[r], IsAllowed(r, p), "%s/%s", r, p)
		}
		require.False(t, IsAllowed(RoleNone, p))
	}
}

func TestTableShape(t *testing.T) {
	for _, p := range Permissions() {
		name := p.String()
		roles := p.Roles()
		switch {
		case strings.HasPrefix(name, "VIEW_") && name != "VIEW_USERS":
			require.Len(t, roles, 3, name)
		case name == "EDIT_SETTINGS", name == "RESET_PASSWORD", strings.HasSuffix(name, "_USER"), name == "VIEW_USERS":
			require.Equal(t, []Role{RoleAdmin}, roles, name)
		}
	}

	for _, doc := range []string{"RECEIPT", "DELIVERY", "TRANSFER", "ADJUSTMENT"} {
		for _, verb := range []string{"CREATE_", "EDIT_"} {
			p, ok := ParsePermission(verb + doc)
			require.True(t, ok)
			require.Len(t, p.Roles(), 3)
		}
		for _, verb := range []string{"DELETE_", "VALIDATE_"} {
			p, ok := ParsePermission(verb + doc)
			require.True(t, ok)
			require.Equal(t, []Role{RoleAdmin, RoleInventoryManager}, p.Roles())
		}
	}

	for _, master := range []string{"PRODUCT", "CATEGORY", "UOM", "WAREHOUSE", "LOCATION"} {
		for _, verb := range []string{"CREATE_", "EDIT_"} {
			p, ok := ParsePermission(verb + master)
			require.True(t, ok)
			require.Equal(t, []Role{RoleAdmin, RoleInventoryManager}, p.Roles())
		}
		p, ok := ParsePermission("DELETE_" + master)
		require.True(t, ok)
		require.Equal(t, []Role{RoleAdmin}, p.Roles())
	}
}

func TestWarehouseStaffReceipts(t *testing.T) {
	require.False(t, IsAllowed(RoleWarehouseStaff, DeleteReceipt))
	require.True(t, IsAllowed(RoleWarehouseStaff, CreateReceipt))
}

func TestUnknownPermissionDenied(t *testing.T) {
	_, ok := ParsePermission("LAUNCH_ROCKET")
	require.False(t, ok)
	require.False(t, IsAllowed(RoleAdmin, Permission(0)))
	require.False(t, IsAllowed(RoleAdmin, permissionCount))
	require.False(t, IsAllowed(Role(42), ViewDashboard))
}

func TestListVariants(t *testing.T) {
	for _, r := range Roles() {
		require.True(t, IsAllowedAll(r, nil))
		require.True(t, IsAllowedAll(r, []Permission{}))
		require.False(t, IsAllowedAny(r, nil))
		require.False(t, IsAllowedAny(r, []Permission{}))
	}

	require.True(t, IsAllowedAny(RoleWarehouseStaff, []Permission{DeleteReceipt, CreateReceipt}))
	require.False(t, IsAllowedAll(RoleWarehouseStaff, []Permission{DeleteReceipt, CreateReceipt}))
	require.True(t, IsAllowedAll(RoleInventoryManager, []Permission{DeleteReceipt, CreateReceipt}))
	require.False(t, IsAllowedAny(RoleInventoryManager, []Permission{DeleteProduct, ViewUsers}))

	require.False(t, IsAllowedAny(RoleNone, []Permission{ViewDashboard}))
	require.False(t, IsAllowedAll(RoleNone, []Permission{ViewDashboard}))
	require.False(t, IsAllowedAll(RoleNone, nil))
}

func TestIdempotent(t *testing.T) {
	for i := 0; i < 3; i++ {
		require.True(t, IsAllowed(RoleAdmin, DeleteUser))
		require.False(t, IsAllowed(RoleInventoryManager, DeleteUser))
	}
	require.Equal(t, Granted(RoleWarehouseStaff), Granted(RoleWarehouseStaff))
}

func TestGranted(t *testing.T) {
	require.Len(t, Granted(RoleAdmin), 48)
	require.Empty(t, Granted(RoleNone))

	staff := Granted(RoleWarehouseStaff)
	for _, p := range staff {
		require.True(t, IsAllowed(RoleWarehouseStaff, p))
	}
	require.NotContains(t, staff, ValidateDelivery)
	require.Contains(t, staff, CreateDelivery)
}

func TestParseRole(t *testing.T) {
	require.Equal(t, RoleAdmin, ParseRole("ADMIN"))
	require.Equal(t, RoleInventoryManager, ParseRole(" inventory_manager "))
	require.Equal(t, RoleWarehouseStaff, ParseRole("WAREHOUSE_STAFF"))
	require.Equal(t, RoleNone, ParseRole(""))
	require.Equal(t, RoleNone, ParseRole("SUPERUSER"))
	require.Equal(t, "Inventory Manager", RoleInventoryManager.Label())
	require.Equal(t, "", RoleNone.Label())
}

func TestRoleJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"role": RoleWarehouseStaff, "perm": CreateReceipt})
	require.NoError(t, err)
	require.JSONEq(t, `{"role":"WAREHOUSE_STAFF","perm":"CREATE_RECEIPT"}`, string(raw))

	var decoded struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"ADMIN"}`), &decoded))
	require.Equal(t, RoleAdmin, decoded.Role)
	require.NoError(t, json.Unmarshal([]byte(`{"role":"nobody"}`), &decoded))
	require.Equal(t, RoleNone, decoded.Role)
}
