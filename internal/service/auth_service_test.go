package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/pkg/config"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
)

func newAuthServiceForTest(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(validator.New(), zap.NewNop(), config.AuthConfig{
		Enabled:           true,
		JWTSecret:         "test-secret",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	})
}

func TestAuthServiceLogin(t *testing.T) {
	service := newAuthServiceForTest(t)

	resp, err := service.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := service.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "access", claims.TokenType)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	service := newAuthServiceForTest(t)

	_, err := service.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "wrong"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	service := newAuthServiceForTest(t)

	_, err := service.Login(context.Background(), models.LoginRequest{Username: "root", Password: "s3cret"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceRefresh(t *testing.T) {
	service := newAuthServiceForTest(t)

	login, err := service.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	refreshed, err := service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)

	claims, err := service.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestAuthServiceRefreshRejectsAccessToken(t *testing.T) {
	service := newAuthServiceForTest(t)

	login, err := service.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	_, err = service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.AccessToken})
	require.Error(t, err)
}

func TestAuthServiceValidateRejectsRefreshToken(t *testing.T) {
	service := newAuthServiceForTest(t)

	login, err := service.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(login.RefreshToken)
	require.Error(t, err)
}

func TestAuthServiceValidateRejectsForgedToken(t *testing.T) {
	service := newAuthServiceForTest(t)
	other := NewAuthService(validator.New(), zap.NewNop(), config.AuthConfig{
		JWTSecret:         "another-secret",
		Expiration:        time.Hour,
		RefreshExpiration: time.Hour,
		AdminUsername:     "admin",
	})

	forged, _, _, err := other.issueTokens("admin")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(forged)
	require.Error(t, err)
}
