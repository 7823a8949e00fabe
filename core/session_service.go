package core

import (
	"context"
	"errors"
	"log"
)

// SessionResult is the body of the session endpoint. Failure is signaled
// in-body with success=false; the endpoint itself always answers HTTP 200.
type SessionResult struct {
	User    *SessionUser `json:"user"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
}

// SessionService resolves the current session and augments the provider's
// user with the admin flag from the user repository. Read-only and
// idempotent; it never returns an error to callers.
type SessionService struct {
	provider SessionProvider
	users    UserRepository
}

func NewSessionService(provider SessionProvider, users UserRepository) *SessionService {
	return &SessionService{provider: provider, users: users}
}

// Augment returns the enriched session user for the given token. A missing
// or invalid session yields {user:nil, success:false}; infrastructure
// failures are logged and collapse into the same shape with a generic
// message, never a raised error.
func (s *SessionService) Augment(ctx context.Context, token string) SessionResult {
	if token == "" {
		return SessionResult{}
	}

	u, err := s.provider.GetSession(ctx, token)
	if err != nil {
		log.Printf("session validation error: %v", err)
		return SessionResult{Error: "Session validation failed"}
	}
	if u == nil {
		return SessionResult{}
	}

	admin, err := s.users.IsAdmin(ctx, u.ID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			log.Printf("session validation error: admin lookup: %v", err)
			return SessionResult{Error: "Session validation failed"}
		}
		return SessionResult{}
	}

	enriched := *u
	enriched.Admin = admin
	return SessionResult{User: &enriched, Success: true}
}
