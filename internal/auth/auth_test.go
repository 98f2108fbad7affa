package auth

import (
	"context"
	"testing"
	"time"

	"github.com/attractive-boy/schoolbus-back/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Issue(Identity{UserID: "u1", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	id, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret")

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong secret", token: sign(jwt.MapClaims{"user_id": "u1", "role": "rider"}, "other")},
		{name: "expired", token: sign(jwt.MapClaims{"user_id": "u1", "role": "rider", "exp": time.Now().Add(-time.Minute).Unix()}, "secret")},
		{name: "missing user", token: sign(jwt.MapClaims{"role": "rider"}, "secret")},
		{name: "unknown role", token: sign(jwt.MapClaims{"user_id": "u1", "role": "root"}, "secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Parse(tt.token)
			require.Error(t, err)
			assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Role: RoleRider})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.CanAccess("u1"))
	assert.False(t, id.CanAccess("u2"))
	assert.True(t, Identity{UserID: "a", Role: RoleAdmin}.CanAccess("u2"))
}

func TestVerifierRoleParses(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Issue(Identity{UserID: "d1", Role: RoleVerifier}, time.Hour)
	require.NoError(t, err)

	id, err := v.Parse(token)
	require.NoError(t, err)
	assert.True(t, id.HasRole(RoleVerifier, RoleAdmin))
	assert.False(t, id.IsAdmin())
	assert.False(t, Identity{Role: RoleRider}.HasRole(RoleVerifier, RoleAdmin))
}
