package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenPurpose binds a link token to exactly one flow so a verification
// token can never reset a password and vice versa.
type TokenPurpose string

const (
	PurposeEmailVerify   TokenPurpose = "email-verify"
	PurposePasswordReset TokenPurpose = "password-reset"
)

const (
	// EmailVerifyTTL bounds how long an emailed verification link works.
	EmailVerifyTTL = 24 * time.Hour
	// PasswordResetTTL bounds how long an emailed reset link works.
	PasswordResetTTL = time.Hour

	consumedKeyPrefix = "consumed_jti:"
)

var (
	// ErrTokenInvalid covers expired, malformed, or wrong-purpose tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenUsed is returned when a one-time token is presented twice.
	ErrTokenUsed = errors.New("token already used")
)

type linkClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenMinter mints and validates the HS256 tokens embedded in emailed
// verification and password-reset links. Redis marks consumed token ids so
// reset links are single-use.
type TokenMinter struct {
	secret []byte
	redis  *redis.Client
}

func NewTokenMinter(secret string, client *redis.Client) *TokenMinter {
	return &TokenMinter{secret: []byte(secret), redis: client}
}

// Mint returns a signed token for the user bound to the given purpose.
func (m *TokenMinter) Mint(userID string, purpose TokenPurpose, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := linkClaims{
		Purpose: string(purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, expiry, and purpose, returning the bound user id
// and the token id used for one-time consumption.
func (m *TokenMinter) Verify(tokenString string, purpose TokenPurpose) (userID, jti string, err error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &linkClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", "", ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*linkClaims)
	if !ok || claims.Purpose != string(purpose) || claims.Subject == "" {
		return "", "", ErrTokenInvalid
	}
	return claims.Subject, claims.ID, nil
}

// Consume marks a token id as used. The marker lives as long as the token
// could still be valid; a second consume fails with ErrTokenUsed.
func (m *TokenMinter) Consume(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return ErrTokenInvalid
	}
	ok, err := m.redis.SetNX(ctx, consumedKeyPrefix+jti, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("token consume: %w", err)
	}
	if !ok {
		return ErrTokenUsed
	}
	return nil
}
