package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tidecms/tidecms/internal/middleware"
	"github.com/tidecms/tidecms/internal/permissions"
	appErrors "github.com/tidecms/tidecms/pkg/errors"
	"github.com/tidecms/tidecms/pkg/response"
)

// PermissionHandler exposes permission introspection for the authenticated
// user.
type PermissionHandler struct {
	engine *permissions.Engine
}

// NewPermissionHandler wires the handler with the permission engine.
func NewPermissionHandler(engine *permissions.Engine) (*PermissionHandler, error) {
	if engine == nil {
		return nil, errors.New("permission handler: engine is required")
	}
	return &PermissionHandler{engine: engine}, nil
}

// GET /api/me/permissions
//
// Lists the caller's permissions in the scope the request resolved to:
// tenant scope when a tenant context is attached, platform scope for the
// super-user operating without one.
func (h *PermissionHandler) ListMine(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var tenantID *string
	if resolved, ok := middleware.ResolvedTenant(c); ok && !resolved.Bypass {
		tenantID = &resolved.TenantID
	}

	names, err := h.engine.ListPermissions(requestContext(c), userID, tenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": names})
}
