package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amdraipt/timetable-api/internal/models"
	"github.com/amdraipt/timetable-api/pkg/config"
	appErrors "github.com/amdraipt/timetable-api/pkg/errors"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthService authenticates the single configured admin account. Credentials
// live in deployment configuration, so there is no user store behind it.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	cfg       config.AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, cfg config.AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{validator: validate, logger: logger, cfg: cfg}
}

// Login checks the admin credentials and returns an issued token pair.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	// Username and password failures share one message so probes cannot
	// tell which half was wrong.
	if subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.AdminUsername)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}

	access, refresh, issuedAt, err := s.issueTokens(req.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	s.logger.Info("admin login", zap.String("username", req.Username))

	return &models.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.Expiration.Seconds()),
		IssuedAt:     issuedAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair. Refresh is
// stateless, the token itself carries everything needed to rotate.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.parseClaims(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is not a refresh token")
	}
	if claims.Username != s.cfg.AdminUsername {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown token subject")
	}

	access, refresh, issuedAt, err := s.issueTokens(claims.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	return &models.RefreshTokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.Expiration.Seconds()),
		IssuedAt:     issuedAt,
	}, nil
}

// ValidateAccessToken parses an access token and returns its claims.
func (s *AuthService) ValidateAccessToken(tokenString string) (*models.JWTClaims, error) {
	claims, err := s.parseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is not an access token")
	}
	return claims, nil
}

func (s *AuthService) parseClaims(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) issueTokens(username string) (string, string, time.Time, error) {
	issuedAt := time.Now().UTC()

	access, err := s.signToken(username, tokenTypeAccess, issuedAt, issuedAt.Add(s.cfg.Expiration))
	if err != nil {
		return "", "", time.Time{}, err
	}
	refresh, err := s.signToken(username, tokenTypeRefresh, issuedAt, issuedAt.Add(s.cfg.RefreshExpiration))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return access, refresh, issuedAt, nil
}

func (s *AuthService) signToken(username, tokenType string, issuedAt, expiresAt time.Time) (string, error) {
	claims := &models.JWTClaims{
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
