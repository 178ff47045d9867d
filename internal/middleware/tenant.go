package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/tidecms/tidecms/internal/auth"
	"github.com/tidecms/tidecms/internal/tenant"
	"github.com/tidecms/tidecms/pkg/response"
)

// Tenant identification headers. Explicit headers win over token hints.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderTenantSlug = "X-Tenant-Slug"
)

// CtxTenantKey holds the *tenant.Resolved for the request once the tenant
// middleware has run.
const CtxTenantKey = "resolvedTenant"

// TenantContext resolves the tenant addressed by the request and publishes it
// for downstream handlers. Requests from the platform super-user pass through
// in bypass mode even without a tenant identifier.
func TenantContext(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := tenant.Request{
			Principal: tenant.Principal{
				UserID:          c.GetString(CtxUserIDKey),
				IsPlatformAdmin: c.GetBool(CtxPlatformAdminKey),
			},
			TenantID:   c.GetHeader(HeaderTenantID),
			TenantSlug: c.GetHeader(HeaderTenantSlug),
		}

		// Fall back to tenant hints baked into the access token.
		if req.TenantID == "" && req.TenantSlug == "" {
			if v, ok := c.Get(CtxClaimsKey); ok {
				if claims, ok := v.(*iauth.Claims); ok {
					req.TenantID = claims.TenantID
					req.TenantSlug = claims.TenantSlug
				}
			}
		}

		resolved, err := resolver.Resolve(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxTenantKey, resolved)
		c.Next()
	}
}

// ResolvedTenant retrieves the tenant context published by TenantContext.
func ResolvedTenant(c *gin.Context) (*tenant.Resolved, bool) {
	v, ok := c.Get(CtxTenantKey)
	if !ok {
		return nil, false
	}
	resolved, ok := v.(*tenant.Resolved)
	return resolved, ok
}
