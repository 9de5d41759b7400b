// Package session carries the signed-in user through the POS core.
//
// The core never authenticates anyone: it receives a Context from
// configuration or from a JWT signed by the back-office, and checks roles.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a staff role.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)

// Action is a permission-checked operation.
type Action string

const (
	ActionCheckout      Action = "check out"
	ActionManageSelling Action = "manage selling sessions"
	ActionManageCatalog Action = "manage the catalog"
	ActionManageBrand   Action = "manage brand-wide records"
)

// Context is the signed-in user.
type Context struct {
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	StoreID  string `json:"store_id"`
	BranchID string `json:"branch_id"`
}

// Validate checks that the context names a user with a known role. Managers
// and cashiers must be assigned to a store.
func (c Context) Validate() error {
	if c.UserID == "" {
		return errors.New("session: user id is required")
	}
	switch c.Role {
	case RoleOwner:
	case RoleManager, RoleCashier:
		if c.StoreID == "" {
			return fmt.Errorf("session: role %s requires a store id", c.Role)
		}
	default:
		return fmt.Errorf("session: unknown role %q", c.Role)
	}
	return nil
}

// Can reports whether the role may perform the action on storeID.
// Owners may act on any store; everyone else only on their own.
func (c Context) Can(action Action, storeID string) bool {
	if c.Role != RoleOwner && c.StoreID != storeID {
		return false
	}
	switch action {
	case ActionCheckout:
		return c.Role == RoleOwner || c.Role == RoleManager || c.Role == RoleCashier
	case ActionManageSelling:
		return c.Role == RoleOwner || c.Role == RoleManager
	case ActionManageCatalog:
		return c.Role == RoleOwner || c.Role == RoleManager
	case ActionManageBrand:
		return c.Role == RoleOwner
	default:
		return false
	}
}

// Claims are the JWT claims issued to terminals.
type Claims struct {
	Role     Role   `json:"role"`
	StoreID  string `json:"store_id,omitempty"`
	BranchID string `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

const issuer = "possync"

// Sign issues an HS256 token for c valid for ttl from now.
func Sign(c Context, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if len(secret) == 0 {
		return "", errors.New("session: empty signing secret")
	}
	claims := Claims{
		Role:     c.Role,
		StoreID:  c.StoreID,
		BranchID: c.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("session: sign: %w", err)
	}
	return signed, nil
}

// Parse verifies an HS256 token and returns its Context.
func Parse(token string, secret []byte) (Context, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Context{}, fmt.Errorf("session: parse: %w", err)
	}

	c := Context{
		UserID:   claims.Subject,
		Role:     claims.Role,
		StoreID:  claims.StoreID,
		BranchID: claims.BranchID,
	}
	if err := c.Validate(); err != nil {
		return Context{}, err
	}
	return c, nil
}
