package server

import (
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stacksym/stacksym/api"
)

// requestID tags every request with an id, reusing one the client sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(api.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(api.RequestIDHeader, id)
		c.Header(api.RequestIDHeader, id)
		c.Next()
	}
}

// logger logs each request through apex/log once it has been served.
func logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := log.WithFields(log.Fields{
			"id":      c.GetString(api.RequestIDHeader),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		switch {
		case len(c.Errors) > 0:
			ctx.WithError(c.Errors.Last()).Error("request failed")
		case c.Writer.Status() >= 500:
			ctx.Error("request failed")
		default:
			ctx.Debug("request")
		}
	}
}
