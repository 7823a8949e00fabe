package core

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext carries per-request fields as an explicit struct instead of
// hanging them off a shared library type.
type RequestContext struct {
	RequestID string
	Logger    *log.Logger
	StartedAt time.Time
}

const requestContextKey = "request_context"

// RequestLogger assigns each request an id and a prefixed logger, echoes the
// id in X-Request-Id, and logs start/finish with duration when enabled.
func RequestLogger(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		rc := &RequestContext{
			RequestID: id,
			Logger:    log.New(log.Writer(), "["+shortID(id)+"] ", log.LstdFlags),
			StartedAt: time.Now(),
		}
		c.Set(requestContextKey, rc)
		c.Writer.Header().Set("X-Request-Id", id)

		if !cfg.LogRequests {
			c.Next()
			return
		}

		rc.Logger.Printf("request start method=%s path=%s", c.Request.Method, c.Request.URL.Path)
		c.Next()
		rc.Logger.Printf("request finish status=%d duration_ms=%d bytes=%d",
			c.Writer.Status(), time.Since(rc.StartedAt).Milliseconds(), c.Writer.Size())
	}
}

// shortID trims a request id for log prefixes. Client-supplied ids may be
// arbitrarily short.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RequestContextFrom returns the request's context struct, or a zero-value
// fallback logging to the process logger.
func RequestContextFrom(c *gin.Context) *RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if rc, ok := v.(*RequestContext); ok {
			return rc
		}
	}
	return &RequestContext{Logger: log.Default()}
}
