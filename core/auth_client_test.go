package core

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func stubClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func TestLoginInvalidCredentials(t *testing.T) {
	var navigated []string
	a := NewAuthClient("http://portal.test",
		WithNavigator(func(p string) { navigated = append(navigated, p) }),
		WithHTTPClient(stubClient(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized,
				`{"error":{"code":"INVALID_CREDENTIALS","message":"Invalid email or password"}}`), nil
		})))

	// Repeated failures never set a user and always leave a message.
	for i := 0; i < 3; i++ {
		res := a.Login(context.Background(), "ada@example.com", "wrong")
		if res.Success {
			t.Fatal("expected failure result")
		}
		if a.State.User != nil {
			t.Fatal("failed login must not set a user")
		}
		if a.State.Error != "Invalid email or password" {
			t.Fatalf("expected provider message, got %q", a.State.Error)
		}
		if a.State.IsLoading {
			t.Fatal("isLoading must be false after settlement")
		}
	}
	if len(navigated) != 0 {
		t.Fatalf("failed login must not navigate, got %v", navigated)
	}
}

func TestLoginSuccessNavigates(t *testing.T) {
	var navigated []string
	a := NewAuthClient("http://portal.test",
		WithNavigator(func(p string) { navigated = append(navigated, p) }),
		WithHTTPClient(stubClient(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK,
				`{"user":{"id":"u1","name":"Ada","email":"ada@example.com","emailVerified":true,"admin":false},"success":true}`), nil
		})))

	a.State.Error = "stale error"
	res := a.Login(context.Background(), "ada@example.com", "secret1")
	if !res.Success || res.Error != "" {
		t.Fatalf("expected success, got %+v", res)
	}
	if a.State.User == nil || a.State.User.Email != "ada@example.com" {
		t.Fatalf("expected user set, got %+v", a.State.User)
	}
	if a.State.Error != "" || a.State.IsLoading {
		t.Fatalf("expected clean settled state, got %+v", a.State)
	}
	if len(navigated) != 1 || navigated[0] != "/dashboard" {
		t.Fatalf("expected navigation to /dashboard, got %v", navigated)
	}
}

func TestActionsToggleLoading(t *testing.T) {
	// The transport observes the state mid-flight: loading must be true for
	// the whole span of the network call, on success and failure alike.
	type action struct {
		name string
		resp *http.Response
		err  error
		run  func(a *AuthClient)
	}
	actions := []action{
		{
			name: "login success",
			resp: jsonResponse(http.StatusOK, `{"user":{"id":"u1","email":"a@b.c"},"success":true}`),
			run:  func(a *AuthClient) { a.Login(context.Background(), "a@b.c", "pw") },
		},
		{
			name: "login failure",
			err:  errors.New("network down"),
			run:  func(a *AuthClient) { a.Login(context.Background(), "a@b.c", "pw") },
		},
		{
			name: "signup failure",
			resp: jsonResponse(http.StatusConflict, `{"error":{"code":"EMAIL_TAKEN","message":"Email already registered"}}`),
			run:  func(a *AuthClient) { a.Signup(context.Background(), "Ada", "a@b.c", "pw") },
		},
		{
			name: "refresh success",
			resp: jsonResponse(http.StatusOK, `{"user":{"id":"u1","email":"a@b.c"},"success":true}`),
			run:  func(a *AuthClient) { a.Refresh(context.Background()) },
		},
		{
			name: "refresh failure",
			err:  errors.New("network down"),
			run:  func(a *AuthClient) { a.Refresh(context.Background()) },
		},
		{
			name: "logout failure",
			err:  errors.New("network down"),
			run:  func(a *AuthClient) { a.Logout(context.Background()) },
		},
	}

	for _, tc := range actions {
		t.Run(tc.name, func(t *testing.T) {
			var a *AuthClient
			sawLoading := false
			a = NewAuthClient("http://portal.test",
				WithHTTPClient(stubClient(func(r *http.Request) (*http.Response, error) {
					sawLoading = a.State.IsLoading
					if tc.err != nil {
						return nil, tc.err
					}
					return tc.resp, nil
				})))

			tc.run(a)
			if !sawLoading {
				t.Fatal("isLoading must be true while the call is in flight")
			}
			if a.State.IsLoading {
				t.Fatal("isLoading must be false once the action settles")
			}
		})
	}
}

func TestRefreshFailureClearsEverything(t *testing.T) {
	a := NewAuthClient("http://portal.test",
		WithHTTPClient(stubClient(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"user":null,"success":false}`), nil
		})))

	// Pre-populate so the clear is observable.
	a.State.User = &SessionUser{ID: "u1", Email: "a@b.c"}
	a.State.Error = "old"

	a.Refresh(context.Background())
	if a.State.User != nil || a.State.Error != "" || a.State.IsLoading {
		t.Fatalf("expected full clear, got %+v", a.State)
	}
}

func TestLogoutClearsEvenWhenRemoteFails(t *testing.T) {
	var navigated []string
	a := NewAuthClient("http://portal.test",
		WithNavigator(func(p string) { navigated = append(navigated, p) }),
		WithHTTPClient(stubClient(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})))

	a.State.User = &SessionUser{ID: "u1", Email: "a@b.c"}

	a.Logout(context.Background())
	if a.State.User != nil {
		t.Fatal("logout must clear the user even when sign-out fails remotely")
	}
	if len(navigated) != 1 || navigated[0] != "/" {
		t.Fatalf("expected navigation home, got %v", navigated)
	}
}

func TestForwardedCookieHeader(t *testing.T) {
	var gotCookie string
	a := NewAuthClient("http://portal.test",
		WithForwardedCookie("portal_session=abc123"),
		WithHTTPClient(stubClient(func(r *http.Request) (*http.Response, error) {
			gotCookie = r.Header.Get("Cookie")
			return jsonResponse(http.StatusOK, `{"user":null,"success":false}`), nil
		})))

	a.Refresh(context.Background())
	if gotCookie != "portal_session=abc123" {
		t.Fatalf("expected explicit cookie forwarding, got %q", gotCookie)
	}
}

func TestClearAuthIdempotent(t *testing.T) {
	a := NewAuthClient("http://portal.test")
	a.State.User = &SessionUser{ID: "u1"}
	a.State.Error = "x"
	a.ClearAuth()
	a.ClearAuth()
	if a.State.User != nil || a.State.Error != "" || a.State.IsLoading {
		t.Fatalf("expected zeroed state, got %+v", a.State)
	}
}
