package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tidecms/tidecms/internal/permissions"
	"github.com/tidecms/tidecms/pkg/errors"
	"github.com/tidecms/tidecms/pkg/response"
)

// RequirePermission checks that the authenticated user holds the named
// permission in the scope the request resolved to: tenant scope when a tenant
// context is attached, platform scope otherwise.
func RequirePermission(engine *permissions.Engine, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		var tenantID *string
		if resolved, ok := ResolvedTenant(c); ok && !resolved.Bypass {
			tenantID = &resolved.TenantID
		}

		allowed, err := engine.HasPermission(c.Request.Context(), userID, tenantID, permission)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
