package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
	RoleVerifier Role = "verifier" // drivers' ticket scanners
)

type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// HasRole reports whether the identity carries any of roles.
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// CanAccess reports whether the identity may act on a resource owned by riderID.
func (i Identity) CanAccess(riderID string) bool {
	return i.IsAdmin() || i.UserID == riderID
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Verifier validates HS256 bearer tokens carrying user_id and role claims.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Parse(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, apperr.Wrap(apperr.KindUnauthenticated, err, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, apperr.Unauthenticated("invalid token")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return Identity{}, apperr.Unauthenticated("user_id not found in token")
	}

	role := Role(fmt.Sprint(claims["role"]))
	switch role {
	case RoleRider, RoleAdmin, RoleVerifier:
	default:
		return Identity{}, apperr.Wrap(apperr.KindUnauthenticated, errors.New(string(role)), "unknown role in token")
	}

	return Identity{UserID: userID, Role: role}, nil
}

// Issue signs a token for id. Used by the operator CLI and tests; end-user
// tokens come from the login service.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"role":    string(id.Role),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
