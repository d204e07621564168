package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"pestops-bknd/internal/auth"
	"pestops-bknd/internal/config"
	"pestops-bknd/internal/database/dbtest"
	"pestops-bknd/internal/logger"
	"pestops-bknd/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newAuthService(t *testing.T) (*AuthService, *UserService, *bun.DB) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	db := dbtest.New(t)
	cfg := &config.Config{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, JWTIssuer: "pestops"}
	jwt := auth.NewJWTManagerFromKeys(key, &key.PublicKey, cfg.JWTIssuer)
	return NewAuthService(db, jwt, cfg, logger.NewNop()), NewUserService(db), db
}

func TestLoginLocal(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	u, err := users.Create(ctx, models.UserInput{Email: "Ama@Example.com", Name: "Ama", Password: "s3cret", Role: models.RoleAgent})
	require.NoError(t, err)

	pair, info, err := svc.LoginLocal(ctx, "ama@example.com", "s3cret", "pixel-7")
	require.NoError(t, err)
	assert.Equal(t, u.ID, info.ID)
	assert.Equal(t, models.RoleAgent, info.Role)

	claims, err := svc.jwt.VerifyToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "agent", claims.Role)

	_, _, err = svc.LoginLocal(ctx, "ama@example.com", "wrong", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.LoginLocal(ctx, "nobody@example.com", "s3cret", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLocal_DisabledAccount(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	u, err := users.Create(ctx, models.UserInput{Email: "kofi@example.com", Password: "pw", Role: models.RoleAgent})
	require.NoError(t, err)
	inactive := false
	_, err = users.Update(ctx, u.ID, models.UserUpdate{Active: &inactive})
	require.NoError(t, err)

	_, _, err = svc.LoginLocal(ctx, "kofi@example.com", "pw", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	_, err := users.Create(ctx, models.UserInput{Email: "efua@example.com", Password: "pw", Role: models.RoleSupervisor})
	require.NoError(t, err)
	pair, _, err := svc.LoginLocal(ctx, "efua@example.com", "pw", "")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "old refresh token is revoked")

	_, err = svc.Refresh(ctx, next.AccessToken, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "access tokens cannot refresh")
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	_, err := users.Create(ctx, models.UserInput{Email: "yaw@example.com", Password: "pw", Role: models.RoleAgent})
	require.NoError(t, err)
	pair, _, err := svc.LoginLocal(ctx, "yaw@example.com", "pw", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	_, err = svc.Refresh(ctx, pair.RefreshToken, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCheckTokenVersion_RoleChangeRevokes(t *testing.T) {
	svc, users, _ := newAuthService(t)
	ctx := context.Background()

	u, err := users.Create(ctx, models.UserInput{Email: "abena@example.com", Password: "pw", Role: models.RoleAgent})
	require.NoError(t, err)

	ok, err := svc.CheckTokenVersion(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	role := models.RoleSupervisor
	_, err = users.Update(ctx, u.ID, models.UserUpdate{Role: &role})
	require.NoError(t, err)

	ok, err = svc.CheckTokenVersion(ctx, u.ID, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CheckTokenVersion(ctx, "missing", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreRefreshToken_CapsSessions(t *testing.T) {
	svc, users, db := newAuthService(t)
	ctx := context.Background()

	u, err := users.Create(ctx, models.UserInput{Email: "kwame@example.com", Password: "pw", Role: models.RoleAgent})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, _, err := svc.LoginLocal(ctx, "kwame@example.com", "pw", "")
		require.NoError(t, err)
	}

	count, err := db.NewSelect().Model((*models.RefreshToken)(nil)).Where("user_id = ?", u.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, maxSessions, count)
}
