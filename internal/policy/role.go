// Package policy decides which roles may exercise which warehouse capabilities.
package policy

import "strings"

// Role is the authorization level attached to a logged-in user. The zero value
// RoleNone means no session and is denied everything.
type Role uint8

const (
	RoleNone Role = iota
	RoleAdmin
	RoleInventoryManager
	RoleWarehouseStaff
)

var roleNames = [...]string{
	RoleNone:             "",
	RoleAdmin:            "ADMIN",
	RoleInventoryManager: "INVENTORY_MANAGER",
	RoleWarehouseStaff:   "WAREHOUSE_STAFF",
}

var roleLabels = [...]string{
	RoleNone:             "",
	RoleAdmin:            "Admin",
	RoleInventoryManager: "Inventory Manager",
	RoleWarehouseStaff:   "Warehouse Staff",
}

// Roles lists every assignable role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleInventoryManager, RoleWarehouseStaff}
}

// ParseRole maps a wire name to a Role. Unknown names yield RoleNone.
func ParseRole(name string) Role {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return RoleNone
	}
	for r, n := range roleNames {
		if n == name {
			return Role(r)
		}
	}
	return RoleNone
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r > RoleNone && int(r) < len(roleNames)
}

func (r Role) String() string {
	if !r.Valid() {
		return ""
	}
	return roleNames[r]
}

// Label returns the display name used by the user screens.
func (r Role) Label() string {
	if !r.Valid() {
		return ""
	}
	return roleLabels[r]
}

// MarshalText encodes the role by its wire name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a wire name; unknown names become RoleNone.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// roleSet is a bitmask of roles.
type roleSet uint8

func rolesOf(roles ...Role) roleSet {
	var s roleSet
	for _, r := range roles {
		s |= 1 << r
	}
	return s
}

func (s roleSet) has(r Role) bool {
	return r.Valid() && s&(1<<r) != 0
}

func (s roleSet) members() []Role {
	out := make([]Role, 0, 3)
	for _, r := range Roles() {
		if s.has(r) {
			out = append(out, r)
		}
	}
	return out
}
