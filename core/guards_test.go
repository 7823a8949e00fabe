package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
)

// guardRouter wires a guard chain behind a stub auth cell.
func guardRouter(ra *RequestAuth, guards ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(authContextKey, ra)
		c.Next()
	})
	handlers := append(guards, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/guarded", handlers...)
	r.GET("/guarded/deep", handlers...)
	return r
}

func stubAuth(user *SessionUser) *RequestAuth {
	return &RequestAuth{
		State:   &AuthState{User: user},
		refresh: func(context.Context) {},
	}
}

func get(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthRedirectsAnonymous(t *testing.T) {
	r := guardRouter(stubAuth(nil), RequireAuth())
	w := get(t, r, "/guarded/deep?tab=2")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	want := "/auth/login?redirect=" + url.QueryEscape("/guarded/deep?tab=2")
	if loc := w.Header().Get("Location"); loc != want {
		t.Fatalf("expected redirect to %q, got %q", want, loc)
	}
}

func TestRequireAuthAllowsAuthenticated(t *testing.T) {
	r := guardRouter(stubAuth(&SessionUser{ID: "u1", EmailVerified: true}), RequireAuth())
	if w := get(t, r, "/guarded"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAuthRefreshesOnce(t *testing.T) {
	// A cold cell becomes authenticated after the guard's one refresh.
	st := &AuthState{}
	calls := 0
	ra := &RequestAuth{State: st, refresh: func(context.Context) {
		calls++
		st.User = &SessionUser{ID: "u1"}
	}}
	r := guardRouter(ra, RequireAuth())
	if w := get(t, r, "/guarded"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after refresh, got %d", w.Code)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one refresh, got %d", calls)
	}
}

func TestRequireAdminNonAdminGoesToUnauthorized(t *testing.T) {
	r := guardRouter(stubAuth(&SessionUser{ID: "u1", Admin: false}), RequireAdmin())
	w := get(t, r, "/guarded")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	// Not to login: the user is authenticated, just not an admin; and no
	// redirect parameter is carried.
	if loc := w.Header().Get("Location"); loc != "/unauthorized" {
		t.Fatalf("expected /unauthorized, got %q", loc)
	}
}

func TestRequireAdminAnonymousGoesToLogin(t *testing.T) {
	r := guardRouter(stubAuth(nil), RequireAdmin())
	w := get(t, r, "/guarded")
	want := "/auth/login?redirect=" + url.QueryEscape("/guarded")
	if loc := w.Header().Get("Location"); w.Code != http.StatusFound || loc != want {
		t.Fatalf("expected login redirect %q, got %d %q", want, w.Code, loc)
	}
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	r := guardRouter(stubAuth(&SessionUser{ID: "u1", Admin: true}), RequireAdmin())
	if w := get(t, r, "/guarded"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireVerifiedRedirectsUnverified(t *testing.T) {
	r := guardRouter(stubAuth(&SessionUser{ID: "u1", EmailVerified: false}), RequireVerified())
	w := get(t, r, "/guarded/deep?x=1")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	want := "/verified?redirect=" + url.QueryEscape("/guarded/deep?x=1")
	if loc := w.Header().Get("Location"); loc != want {
		t.Fatalf("expected %q, got %q", want, loc)
	}
}

func TestRequireVerifiedAllowsVerified(t *testing.T) {
	r := guardRouter(stubAuth(&SessionUser{ID: "u1", EmailVerified: true}), RequireVerified())
	if w := get(t, r, "/guarded"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireVerifiedDefersAnonymousToAuthGuard(t *testing.T) {
	// The verification guard lets anonymous navigations through; a chained
	// RequireAuth owns the login redirect.
	r := guardRouter(stubAuth(nil), RequireVerified())
	if w := get(t, r, "/guarded"); w.Code != http.StatusOK {
		t.Fatalf("verification guard must not redirect anonymous users, got %d", w.Code)
	}

	chained := guardRouter(stubAuth(nil), RequireAuth(), RequireVerified())
	w := get(t, chained, "/guarded")
	want := "/auth/login?redirect=" + url.QueryEscape("/guarded")
	if loc := w.Header().Get("Location"); w.Code != http.StatusFound || loc != want {
		t.Fatalf("expected login redirect from chained auth guard, got %d %q", w.Code, loc)
	}
}

func TestAdminOnlyAPIStatuses(t *testing.T) {
	cases := []struct {
		name string
		user *SessionUser
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"non-admin", &SessionUser{ID: "u1"}, http.StatusForbidden},
		{"admin", &SessionUser{ID: "u1", Admin: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := guardRouter(stubAuth(tc.user), AdminOnly())
			if w := get(t, r, "/guarded"); w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}
