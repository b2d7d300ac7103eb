package identity

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/credible/jwt"
)

// User claims
const (
	ClaimUserID      = "userId"
	ClaimUsername    = "username"
	ClaimPermissions = "permissions"
)

// User is a sample identity of an application user
type User struct {
	UserID      int64    `json:"userId"`
	Username    string   `json:"username"`
	Permissions []string `json:"permissions"`
}

// HasPermission returns true if the user has the permission
func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// UserFactory maps User to claims userId, username and permissions
type UserFactory struct{}

// ToClaims implements Factory
func (UserFactory) ToClaims(u *User) (*jwt.ClaimSet, error) {
	if u == nil {
		return nil, errors.Errorf("nil user")
	}
	if u.Username == "" {
		return nil, errors.Errorf("missing username")
	}

	permissions := u.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	claims := jwt.NewClaimSet()
	if err := claims.Set(ClaimUserID, u.UserID); err != nil {
		return nil, err
	}
	if err := claims.Set(ClaimUsername, u.Username); err != nil {
		return nil, err
	}
	if err := claims.Set(ClaimPermissions, permissions); err != nil {
		return nil, err
	}
	return claims, nil
}

// FromClaims implements Factory
func (UserFactory) FromClaims(claims *jwt.ClaimSet) (*User, error) {
	id, err := RequireInt(claims, ClaimUserID)
	if err != nil {
		return nil, err
	}
	name, err := RequireString(claims, ClaimUsername)
	if err != nil {
		return nil, err
	}
	return &User{
		UserID:      id,
		Username:    name,
		Permissions: OptionalStrings(claims, ClaimPermissions),
	}, nil
}
