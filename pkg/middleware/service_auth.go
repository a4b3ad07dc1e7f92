package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eygar/service-booking/pkg/auth"
	"github.com/eygar/service-booking/pkg/response"
)

// ServiceNameKey is the gin context key holding the authenticated internal service name.
const ServiceNameKey = "service_name"

// ServiceAuthMiddleware admits only callers presenting a valid service token in
// the X-Service-Token header (or as a bearer token).
func ServiceAuthMiddleware(tokens *auth.ServiceTokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Service-Token")
		if raw == "" {
			raw = BearerToken(c)
		}
		if raw == "" {
			response.Unauthorized(c, "missing service token")
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			response.Unauthorized(c, "invalid service token")
			return
		}
		c.Set(ServiceNameKey, claims.Service)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
