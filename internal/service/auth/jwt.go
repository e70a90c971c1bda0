package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the validated content of an access token.
type Claims struct {
	UserID uuid.UUID
	Expiry time.Time
}

// JWTService issues and validates access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for the given user.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken verifies a token and returns its claims. Returns
	// ErrExpiredToken for expired tokens and ErrInvalidToken for any
	// other validation failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Config holds the JWT knobs.
type Config struct {
	// SigningKey is the HMAC secret; must be at least 32 bytes.
	SigningKey string

	// TokenLifetime is how long an issued token stays valid. Zero means
	// 60 minutes.
	TokenLifetime time.Duration
}

// hmacJWTService implements JWTService with HMAC-SHA256 signing.
type hmacJWTService struct {
	signingKey    []byte
	tokenLifetime time.Duration
	clockSkew     time.Duration
	timeFunc      func() time.Time // injectable for testing
}

var _ JWTService = (*hmacJWTService)(nil)

type jwtCustomClaims struct {
	UserID    uuid.UUID `json:"uid"`
	TokenType string    `json:"type"`
	jwt.RegisteredClaims
}

// NewJWTService creates a JWT service using HMAC-SHA256 signing.
func NewJWTService(cfg Config) (JWTService, error) {
	if len(cfg.SigningKey) < 32 {
		return nil, fmt.Errorf("jwt signing key must be at least 32 characters")
	}
	lifetime := cfg.TokenLifetime
	if lifetime <= 0 {
		lifetime = 60 * time.Minute
	}
	return &hmacJWTService{
		signingKey:    []byte(cfg.SigningKey),
		tokenLifetime: lifetime,
		clockSkew:     2 * time.Minute,
		timeFunc:      time.Now,
	}, nil
}

// GenerateToken implements JWTService.
func (s *hmacJWTService) GenerateToken(_ context.Context, userID uuid.UUID) (string, error) {
	now := s.timeFunc()
	claims := jwtCustomClaims{
		UserID:    userID,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenLifetime)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// ValidateToken implements JWTService.
func (s *hmacJWTService) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	now := s.timeFunc()
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwtCustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != "access" {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}

	out := &Claims{UserID: claims.UserID}
	if claims.ExpiresAt != nil {
		out.Expiry = claims.ExpiresAt.Time
	}
	return out, nil
}
