package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxOwnerID = "custom_domains_owner_id"

// RequireOwner returns a Gin middleware that enforces a valid owner Bearer
// token. Failures answer 401 with the plain-text body "Unauthorized".
//
// On success the owner identifier is stored in the context; read it back
// with OwnerFromCtx.
func RequireOwner(resolver OwnerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.Abort()
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}

		ownerID, err := resolver.ResolveOwner(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
		if err != nil || ownerID == "" {
			c.Abort()
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(ctxOwnerID, ownerID)
		c.Next()
	}
}

// OwnerFromCtx returns the owner identifier injected by RequireOwner, or ""
// when the route is unauthenticated.
func OwnerFromCtx(c *gin.Context) string {
	return c.GetString(ctxOwnerID)
}
