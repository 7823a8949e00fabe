package core

import "github.com/gin-gonic/gin"

// AuthBootstrap populates a fresh RequestAuth cell exactly once per request,
// before guards or page handlers read it. It talks to the session service
// directly rather than going through the HTTP client wrapper. A failing
// lookup leaves the cell cleared; the request still proceeds.
func AuthBootstrap(svc *SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ra := NewRequestAuth(svc, sessionToken(c))
		ra.Refresh(c.Request.Context())
		c.Set(authContextKey, ra)
		c.Next()
	}
}
