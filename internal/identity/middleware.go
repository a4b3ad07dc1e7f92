package identity

import (
	"github.com/gin-gonic/gin"

	"github.com/eygar/service-booking/pkg/middleware"
	"github.com/eygar/service-booking/pkg/response"
)

const (
	contextKey     = "identity"
	accessTokenKey = "access_token"
)

// Middleware requires a bearer token and stores the verified identity on the context.
func Middleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := middleware.BearerToken(c)
		if token == "" {
			response.Error(c, ErrMissingToken)
			return
		}
		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Set(contextKey, id)
		c.Set(accessTokenKey, token)
		c.Next()
	}
}

// FromContext returns the identity stored by Middleware.
func FromContext(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

// SetContext stores id on the context. Tests use it to bypass Middleware.
func SetContext(c *gin.Context, id *Identity) {
	c.Set(contextKey, id)
}
