package core

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// AuthClient drives the auth endpoints from outside a request handler: a
// browser-like client with a cookie jar, or a server-render context that
// forwards the incoming Cookie header explicitly. Both paths share one
// AuthState cell and the same action contract.
type AuthClient struct {
	State *AuthState

	base     string
	http     *http.Client
	cookie   string
	navigate func(path string)
}

type AuthClientOption func(*AuthClient)

// WithNavigator installs the callback invoked when an action steers the UI
// (login/signup to the dashboard, logout to the landing page).
func WithNavigator(fn func(path string)) AuthClientOption {
	return func(a *AuthClient) { a.navigate = fn }
}

// WithForwardedCookie switches the client into server-render mode: instead
// of a cookie jar, every request carries the given Cookie header verbatim.
func WithForwardedCookie(header string) AuthClientOption {
	return func(a *AuthClient) { a.cookie = header }
}

// WithHTTPClient overrides the transport. Tests use this to observe state
// mid-flight.
func WithHTTPClient(hc *http.Client) AuthClientOption {
	return func(a *AuthClient) { a.http = hc }
}

func NewAuthClient(baseURL string, opts ...AuthClientOption) *AuthClient {
	a := &AuthClient{
		State:    &AuthState{},
		base:     strings.TrimRight(baseURL, "/"),
		navigate: func(string) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.http == nil {
		jar, _ := cookiejar.New(nil)
		a.http = &http.Client{Jar: jar, Timeout: 15 * time.Second}
	}
	return a
}

// Bootstrap populates the state once at client start. An unreachable
// endpoint leaves the state cleared instead of failing startup.
func (a *AuthClient) Bootstrap(ctx context.Context) {
	a.Refresh(ctx)
}

// Refresh synchronizes the state from the session endpoint. Any failure or
// empty session clears the cell entirely.
func (a *AuthClient) Refresh(ctx context.Context) {
	st := a.State
	st.IsLoading = true
	defer func() { st.IsLoading = false }()

	status, body, err := a.do(ctx, http.MethodGet, "/api/auth/session", nil)
	if err != nil {
		log.Printf("auth refresh failed: %v", err)
		a.ClearAuth()
		return
	}
	var res SessionResult
	if status != http.StatusOK || json.Unmarshal(body, &res) != nil || res.User == nil {
		a.ClearAuth()
		return
	}
	st.User = res.User
	st.Error = ""
}

// Login verifies credentials through the provider's sign-in endpoint. On
// success it sets the user and navigates to the dashboard; on failure it
// records the message and does not navigate.
func (a *AuthClient) Login(ctx context.Context, email, password string) ActionResult {
	return a.signAction(ctx, "/api/auth/sign-in", credentialsRequest{
		Email:    email,
		Password: password,
	}, "Login failed")
}

// Signup registers through the provider's sign-up endpoint. Same contract
// as Login.
func (a *AuthClient) Signup(ctx context.Context, name, email, password string) ActionResult {
	return a.signAction(ctx, "/api/auth/sign-up", credentialsRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}, "Signup failed")
}

// Logout revokes the session remotely, then clears local state and
// navigates home regardless of the remote outcome. A failed sign-out must
// never leave the client looking authenticated.
func (a *AuthClient) Logout(ctx context.Context) {
	st := a.State
	st.IsLoading = true
	defer func() { st.IsLoading = false }()

	if _, _, err := a.do(ctx, http.MethodPost, "/api/auth/sign-out", nil); err != nil {
		log.Printf("logout failed: %v", err)
	}
	a.ClearAuth()
	a.navigate(homePath)
}

// ClearAuth synchronously resets the state cell. Idempotent.
func (a *AuthClient) ClearAuth() {
	a.State.Clear()
}

type credentialsRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signResponse struct {
	User *SessionUser `json:"user"`
}

func (a *AuthClient) signAction(ctx context.Context, path string, req credentialsRequest, fallback string) ActionResult {
	st := a.State
	st.Error = ""
	st.IsLoading = true
	defer func() { st.IsLoading = false }()

	fail := func(msg string) ActionResult {
		st.Error = msg
		return ActionResult{Error: msg}
	}

	status, body, err := a.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return fail(fallback)
	}
	if status != http.StatusOK {
		return fail(errorMessage(body, fallback))
	}
	var out signResponse
	if json.Unmarshal(body, &out) != nil || out.User == nil {
		return fail(fallback)
	}

	st.User = out.User
	st.Error = ""
	a.navigate(dashboardPath)
	return ActionResult{Success: true}
}

func (a *AuthClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rd)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.cookie != "" {
		req.Header.Set("Cookie", a.cookie)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// errorMessage extracts the message from the unified error payload,
// normalizing provider-native shapes into one string.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fallback
}
