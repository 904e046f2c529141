// Package security provides HTTP hardening middleware.
package security

import (
	"os"

	"github.com/gin-gonic/gin"
)

// HeadersMiddleware adds standard security headers to every response.
// HSTS is opt-in via ENABLE_HSTS since it requires HTTPS end to end.
func HeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if os.Getenv("ENABLE_HSTS") == "true" {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}
