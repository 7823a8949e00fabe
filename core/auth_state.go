package core

import (
	"context"

	"github.com/gin-gonic/gin"
)

// AuthState is the single auth cell for one execution context: one server
// request or one client. It is never shared between requests and never
// persisted; the bootstrap step populates it before guards or pages read it.
type AuthState struct {
	User      *SessionUser
	IsLoading bool
	Error     string
}

// Authenticated reports whether the most recent successful refresh or
// login/signup found a valid session.
func (s *AuthState) Authenticated() bool {
	return s.User != nil
}

// Clear resets the cell to its logged-out default. Idempotent.
func (s *AuthState) Clear() {
	*s = AuthState{}
}

// ActionResult is what every auth action hands back to its caller so UI code
// can react without re-reading state.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RequestAuth is the server-side auth cell plus a refresh capability bound
// to the incoming request's session cookie. Guards read it from the gin
// context; the bootstrap middleware creates and populates it.
type RequestAuth struct {
	State   *AuthState
	refresh func(ctx context.Context)
}

// NewRequestAuth binds a fresh state cell to the session service and the
// request's token. Refresh goes straight to the service, not through the
// HTTP client wrapper.
func NewRequestAuth(svc *SessionService, token string) *RequestAuth {
	st := &AuthState{}
	return &RequestAuth{
		State: st,
		refresh: func(ctx context.Context) {
			st.IsLoading = true
			defer func() { st.IsLoading = false }()

			res := svc.Augment(ctx, token)
			if res.User != nil {
				st.User = res.User
				st.Error = ""
				return
			}
			st.Clear()
		},
	}
}

// Refresh re-populates the state from the session service. A failed or
// empty lookup clears the cell entirely.
func (a *RequestAuth) Refresh(ctx context.Context) {
	a.refresh(ctx)
}

func (a *RequestAuth) Authenticated() bool {
	return a.State.Authenticated()
}

// User returns the enriched session user, or nil when unauthenticated.
func (a *RequestAuth) User() *SessionUser {
	return a.State.User
}

const authContextKey = "auth"

// RequestAuthFrom extracts the request's auth cell set by AuthBootstrap.
func RequestAuthFrom(c *gin.Context) *RequestAuth {
	v, ok := c.Get(authContextKey)
	if !ok {
		return nil
	}
	ra, _ := v.(*RequestAuth)
	return ra
}
