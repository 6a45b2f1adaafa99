package gateway

import (
	"net/http"

	"github.com/climanger/relay/internal/v1/auth"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware implements §4.B's origin-reflection policy: reflect the
// request's Origin header back if and only if it matches the configured
// allow-list, otherwise fall back to the first configured origin. A
// response to status 101 (the WebSocket upgrade itself) must never be
// rewrapped with these headers. The middleware runs for the upgrade route
// too, but the headers it sets never reach the 101 response: the upgrader
// hijacks the connection and writes its own handshake response.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", auth.ReflectedOrigin(origin, allowedOrigins))
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
