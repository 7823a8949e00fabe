package core

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Redirect targets for page guards. Each target is itself guard-exempt so
// redirects can never loop.
const (
	homePath         = "/"
	loginPath        = "/auth/login"
	signupPath       = "/auth/signup"
	dashboardPath    = "/dashboard"
	unauthorizedPath = "/unauthorized"
	verifiedPath     = "/verified"
	resetPath        = "/auth/reset"
)

// RequireAuth allows authenticated navigations and redirects everyone else
// to the login page carrying the intended path. The one refresh covers a
// cold context where bootstrap found no session yet the cookie is valid.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ra := RequestAuthFrom(c)
		if ra == nil {
			redirectTo(c, loginPath, c.Request.URL.RequestURI())
			return
		}
		if !ra.Authenticated() {
			ra.Refresh(c.Request.Context())
		}
		if !ra.Authenticated() {
			redirectTo(c, loginPath, c.Request.URL.RequestURI())
			return
		}
		c.Next()
	}
}

// RequireAdmin allows admins, sends unauthenticated users to login and
// authenticated non-admins to the unauthorized page (no redirect param).
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ra := RequestAuthFrom(c)
		if ra == nil {
			redirectTo(c, loginPath, c.Request.URL.RequestURI())
			return
		}
		if !ra.Authenticated() {
			ra.Refresh(c.Request.Context())
		}
		if !ra.Authenticated() {
			redirectTo(c, loginPath, c.Request.URL.RequestURI())
			return
		}
		if !ra.User().Admin {
			redirectTo(c, unauthorizedPath, "")
			return
		}
		c.Next()
	}
}

// RequireVerified sends users with an unverified email to the verification
// prompt. Unauthenticated navigations pass through so a chained RequireAuth
// owns the login redirect instead of duplicating it here.
func RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		ra := RequestAuthFrom(c)
		if ra == nil {
			c.Next()
			return
		}
		if !ra.Authenticated() {
			ra.Refresh(c.Request.Context())
		}
		if !ra.Authenticated() {
			c.Next()
			return
		}
		if !ra.User().EmailVerified {
			redirectTo(c, verifiedPath, c.Request.URL.RequestURI())
			return
		}
		c.Next()
	}
}

func redirectTo(c *gin.Context, target, original string) {
	loc := target
	if original != "" {
		loc += "?redirect=" + url.QueryEscape(original)
	}
	c.Redirect(http.StatusFound, loc)
	c.Abort()
}
