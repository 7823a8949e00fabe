package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// SessionProvider issues, validates, and revokes opaque session tokens. The
// rest of the application never inspects token internals; any conforming
// implementation can be substituted behind this interface.
//
// GetSession returns (nil, nil) for a missing, unknown, or expired token;
// an error means the backing store itself failed.
type SessionProvider interface {
	SignIn(ctx context.Context, email, password string) (*Session, *SessionUser, error)
	SignUp(ctx context.Context, name, email, password string) (*Session, *SessionUser, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (*SessionUser, error)
}

// SessionRevoker is implemented by providers that can drop every session of
// one user, e.g. after a password reset.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) error
}

// Session binds an opaque token to a user id with an expiry.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

const (
	sessionKeyPrefix      = "sess:"
	userSessionsKeyPrefix = "user_sessions:"
)

// RedisSessionProvider checks credentials against the user repository with
// bcrypt and keeps session tokens in redis with a TTL. A per-user token set
// supports revoking all sessions at once.
type RedisSessionProvider struct {
	users UserRepository
	redis *redis.Client
	ttl   time.Duration
	cost  int
}

func NewRedisSessionProvider(users UserRepository, client *redis.Client, ttl time.Duration) *RedisSessionProvider {
	if ttl <= 0 {
		ttl = 5 * time.Hour
	}
	return &RedisSessionProvider{users: users, redis: client, ttl: ttl, cost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (p *RedisSessionProvider) WithBcryptCost(cost int) *RedisSessionProvider {
	p.cost = cost
	return p
}

func (p *RedisSessionProvider) SignIn(ctx context.Context, email, password string) (*Session, *SessionUser, error) {
	if NormalizeEmail(email) == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}
	u, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := p.issue(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, providerUser(u), nil
}

func (p *RedisSessionProvider) SignUp(ctx context.Context, name, email, password string) (*Session, *SessionUser, error) {
	name = strings.TrimSpace(name)
	if name == "" || NormalizeEmail(email) == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if _, err := p.users.FindByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, nil, err
	}
	u, err := p.users.Create(ctx, name, email, string(hash), false, false)
	if err != nil {
		return nil, nil, err
	}
	sess, err := p.issue(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return sess, providerUser(u), nil
}

func (p *RedisSessionProvider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	userID, err := p.redis.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("session lookup: %w", err)
	}
	if err := p.redis.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	// Best effort: the set entry expires with the session key anyway.
	_ = p.redis.SRem(ctx, userSessionsKeyPrefix+userID, token).Err()
	return nil
}

func (p *RedisSessionProvider) GetSession(ctx context.Context, token string) (*SessionUser, error) {
	if token == "" {
		return nil, nil
	}
	userID, err := p.redis.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	u, err := p.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Orphan token for a deleted user; treat as no session.
			_ = p.redis.Del(ctx, sessionKeyPrefix+token).Err()
			return nil, nil
		}
		return nil, err
	}
	return providerUser(u), nil
}

// RevokeAll drops every live session for the user.
func (p *RedisSessionProvider) RevokeAll(ctx context.Context, userID string) error {
	setKey := userSessionsKeyPrefix + userID
	tokens, err := p.redis.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session set lookup: %w", err)
	}
	for _, t := range tokens {
		if err := p.redis.Del(ctx, sessionKeyPrefix+t).Err(); err != nil {
			return fmt.Errorf("session delete: %w", err)
		}
	}
	return p.redis.Del(ctx, setKey).Err()
}

func (p *RedisSessionProvider) issue(ctx context.Context, userID string) (*Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(p.ttl)
	if err := p.redis.Set(ctx, sessionKeyPrefix+token, userID, p.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	setKey := userSessionsKeyPrefix + userID
	if err := p.redis.SAdd(ctx, setKey, token).Err(); err != nil {
		return nil, fmt.Errorf("session set store: %w", err)
	}
	// Keep the set from outliving its longest session.
	_ = p.redis.Expire(ctx, setKey, p.ttl).Err()
	return &Session{Token: token, UserID: userID, ExpiresAt: expiresAt}, nil
}

// providerUser maps a stored record to the provider-native user shape.
// Admin is intentionally absent; the session service augments it.
func providerUser(u *UserRecord) *SessionUser {
	return &SessionUser{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
