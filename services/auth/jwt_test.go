package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"megatrade-web/models"
)

func TestGenerateAndValidateUserToken(t *testing.T) {
	svc := NewJWTService("secret", "megatrade-web", time.Hour)

	issued, err := svc.GenerateToken(models.Identity{UserID: "user-1", Role: models.RoleUser})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)

	identity, err := svc.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.True(t, identity.IsUser())
	assert.False(t, identity.IsAdmin())
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewJWTService("secret", "megatrade-web", time.Minute)
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issuedAt }

	issued, err := svc.GenerateToken(models.Identity{UserID: "user-1", Role: models.RoleUser})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(issued.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenRejectsForeignSignatureAndIssuer(t *testing.T) {
	issued, err := NewJWTService("other", "megatrade-web", time.Hour).
		GenerateToken(models.Identity{UserID: "user-1", Role: models.RoleUser})
	require.NoError(t, err)

	_, err = NewJWTService("secret", "megatrade-web", time.Hour).ValidateToken(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issued, err = NewJWTService("secret", "someone-else", time.Hour).
		GenerateToken(models.Identity{UserID: "user-1", Role: models.RoleUser})
	require.NoError(t, err)

	_, err = NewJWTService("secret", "megatrade-web", time.Hour).ValidateToken(issued.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("secret", "megatrade-web", time.Hour).ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityFor(t *testing.T) {
	identity, err := IdentityFor(models.SessionTokenRequest{AdminID: " admin-7 "})
	require.NoError(t, err)
	assert.Equal(t, models.Identity{AdminID: "admin-7", Role: models.RoleAdmin}, identity)

	identity, err = IdentityFor(models.SessionTokenRequest{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, identity.Role)

	_, err = IdentityFor(models.SessionTokenRequest{})
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	_, err := NewJWTService("secret", "megatrade-web", 0).GenerateToken(models.Identity{Role: models.RoleUser})
	assert.ErrorIs(t, err, ErrMissingIdentity)
}
