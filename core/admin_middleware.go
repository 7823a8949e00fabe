package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminOnly gates JSON API routes: 401 without a session, 403 without the
// admin flag. Page routes use RequireAdmin, which redirects instead.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ra := RequestAuthFrom(c)
		if ra == nil || !ra.Authenticated() {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Login required")
			c.Abort()
			return
		}
		if !ra.User().Admin {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "Admin privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}
