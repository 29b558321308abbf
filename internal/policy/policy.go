package policy

// IsAllowed reports whether role may exercise perm. RoleNone and permissions
// outside the table are always denied.
func IsAllowed(role Role, perm Permission) bool {
	if !role.Valid() || !perm.Valid() {
		return false
	}
	return table[perm].roles.has(role)
}

// IsAllowedAny reports whether at least one of perms is allowed. An empty list
// is denied.
func IsAllowedAny(role Role, perms []Permission) bool {
	if !role.Valid() {
		return false
	}
	for _, p := range perms {
		if IsAllowed(role, p) {
			return true
		}
	}
	return false
}

// IsAllowedAll reports whether every one of perms is allowed. An empty list is
// allowed for any authenticated role.
func IsAllowedAll(role Role, perms []Permission) bool {
	if !role.Valid() {
		return false
	}
	for _, p := range perms {
		if !IsAllowed(role, p) {
			return false
		}
	}
	return true
}

// Granted lists the permissions role holds, ordered by name.
func Granted(role Role) []Permission {
	if !role.Valid() {
		return []Permission{}
	}
	out := make([]Permission, 0, permissionCount-1)
	for p := Permission(1); p < permissionCount; p++ {
		if table[p].roles.has(role) {
			out = append(out, p)
		}
	}
	sortByName(out)
	return out
}

// Matrix returns the full permission table keyed by permission name.
func Matrix() map[string][]Role {
	out := make(map[string][]Role, permissionCount-1)
	for p := Permission(1); p < permissionCount; p++ {
		out[p.String()] = p.Roles()
	}
	return out
}
