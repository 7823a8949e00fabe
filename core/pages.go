package core

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerPages wires the server-rendered page routes to their guard
// chains. The markup itself is deliberately minimal; layout and styling
// live elsewhere.
func registerPages(r *gin.Engine) {
	r.GET(homePath, page("Home", "<p>Welcome.</p>"))
	r.GET(loginPath, page("Log in", `<form method="post"><p>Log in to continue.</p></form>`))
	r.GET(signupPath, page("Sign up", `<form method="post"><p>Create an account.</p></form>`))
	r.GET(resetPath, page("Reset password", `<form method="post"><p>Choose a new password.</p></form>`))
	r.GET(unauthorizedPath, page("Unauthorized", "<p>You do not have access to that page.</p>"))
	r.GET(verifiedPath, page("Email verification", "<p>Check your inbox to verify your email.</p>"))

	r.GET(dashboardPath, RequireAuth(), RequireVerified(), func(c *gin.Context) {
		user := RequestAuthFrom(c).User()
		renderPage(c, "Dashboard", fmt.Sprintf("<p>Signed in as %s.</p>", user.Email))
	})

	r.GET("/admin", RequireAdmin(), func(c *gin.Context) {
		renderPage(c, "Admin", "<p>Admin console.</p>")
	})
}

func page(title, body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		renderPage(c, title, body)
	}
}

func renderPage(c *gin.Context, title, body string) {
	html := fmt.Sprintf("<!doctype html><html><head><title>%s</title></head><body><h1>%s</h1>%s</body></html>", title, title, body)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
