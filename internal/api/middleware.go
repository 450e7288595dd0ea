package api

import (
	"strings"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// authMiddleware attaches the caller's principal when a valid bearer token
// is present. A malformed or expired token is rejected outright; a missing
// one is left for each operation to decide.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			respondError(c, "API_AUTH", service.Errorf(service.KindUnauthenticated, "invalid authorization header"))
			c.Abort()
			return
		}

		p, err := h.auth.ParseToken(raw)
		if err != nil {
			respondError(c, "API_AUTH", err)
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// principal returns the authenticated caller, or nil.
func principal(c *gin.Context) *service.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*service.Principal)
	return p
}
