package service

import (
	"context"
	"testing"
	"time"

	"roofcrm-backend/models"
	"roofcrm-backend/repository/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T) (*AuthService, *memstore.Store, *models.User) {
	t.Helper()
	store := memstore.New()
	hash, err := HashPassword("shingles-2024")
	require.NoError(t, err)

	user := &models.User{Email: "alex@roofco.test", Name: "Alex", PasswordHash: hash, Role: models.RoleAdmin, Active: true}
	require.NoError(t, store.Users.Create(context.Background(), user))

	svc := NewAuthService(
		AuthWithUserRepository(store.Users),
		AuthWithSecret("0123456789abcdef0123", time.Hour),
	)
	return svc, store, user
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	ctx := context.Background()

	result, err := svc.Login(ctx, "ALEX@roofco.test", "shingles-2024")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.ExpiresAt, time.Minute)

	got, err := svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, models.RoleAdmin, got.Role)
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "alex@roofco.test", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@roofco.test", "shingles-2024")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, _, user := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	other := NewAuthService(AuthWithSecret("another-secret-value-123", time.Hour))
	token, _, err := other.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	expired := NewAuthService(AuthWithSecret("0123456789abcdef0123", -time.Minute))
	token, _, err = expired.IssueToken(user)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
