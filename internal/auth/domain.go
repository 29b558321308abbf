package auth

import (
	"github.com/odyssey-erp/stockgate/internal/backend"
	"github.com/odyssey-erp/stockgate/internal/policy"
)

// Profile is what the SPA receives after login and from /me.
type Profile struct {
	User        backend.User        `json:"user"`
	RoleLabel   string              `json:"role_label"`
	Permissions []policy.Permission `json:"permissions"`
}

// NewProfile derives the granted permission list from the user's role.
func NewProfile(user backend.User) Profile {
	return Profile{
		User:        user,
		RoleLabel:   user.Role.Label(),
		Permissions: policy.Granted(user.Role),
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=256"`
}
