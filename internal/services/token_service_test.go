package services

import (
	"testing"
	"time"

	"github.com/h4ks-com/fieldops/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(env *testEnv) *TokenService {
	return NewTokenService(repository.NewTokenRepository(env.db), env.userRepo, "test-secret")
}

func TestTokenService_GenerateAndAuthenticate(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTokenService(env)

	token, row, err := svc.GenerateToken("luis", "phone", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, env.worker1.ID, row.UserID)

	user, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "luis", user.Username)

	_, err = svc.Authenticate(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenService(repository.NewTokenRepository(env.db), env.userRepo, "other-secret")
	_, err = other.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTokenService(env)

	_, _, err := svc.GenerateToken("pedro", "", time.Hour)
	assert.ErrorIs(t, err, ErrForbidden)
	_, _, err = svc.GenerateToken("nobody", "", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = svc.GenerateToken("luis", "", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTokenService_ExpiredAndRevoked(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTokenService(env)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.GenerateToken("luis", "old", time.Hour)
	require.NoError(t, err)
	svc.now = time.Now

	_, err = svc.Authenticate(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	purged, err := svc.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	token, row, err := svc.GenerateToken("luis", "laptop", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteToken(row.ID, env.worker2.ID), ErrNotFound)
	require.NoError(t, svc.DeleteToken(row.ID, env.worker1.ID))

	_, err = svc.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens, err := svc.ListUserTokens(env.worker1.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestTokenService_DeactivatedUserIsRejected(t *testing.T) {
	env := setupTestEnv(t)
	svc := newTokenService(env)

	token, _, err := svc.GenerateToken("maria", "", time.Hour)
	require.NoError(t, err)

	_, err = env.catalog.EnsureUser("maria", "", "worker", false)
	require.NoError(t, err)

	_, err = svc.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
