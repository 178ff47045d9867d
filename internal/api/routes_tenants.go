package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tidecms/tidecms/internal/handlers"
	"github.com/tidecms/tidecms/internal/middleware"
)

// Tenant management is platform-scoped: every route is guarded by a
// platform-level permission, so only catalog roles (or the super-user)
// reach the registry.
func registerTenantRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewTenantHandler(deps.Registry, deps.Worker)
	if err != nil {
		return err
	}

	tenants := api.Group("/tenants")
	{
		tenants.POST("", middleware.RequirePermission(deps.Engine, "tenants:create"), handler.Create)
		tenants.GET("", middleware.RequirePermission(deps.Engine, "tenants:read"), handler.List)
		tenants.GET("/:id", middleware.RequirePermission(deps.Engine, "tenants:read"), handler.Get)
		tenants.PATCH("/:id", middleware.RequirePermission(deps.Engine, "tenants:update"), handler.Update)
		tenants.PATCH("/:id/status", middleware.RequirePermission(deps.Engine, "tenants:update"), handler.UpdateStatus)
		tenants.DELETE("/:id", middleware.RequirePermission(deps.Engine, "tenants:delete"), handler.Delete)
		tenants.POST("/:id/provision", middleware.RequirePermission(deps.Engine, "tenants:update"), handler.Provision)
	}

	return nil
}

func registerPermissionRoutes(api *gin.RouterGroup, deps Dependencies) error {
	handler, err := handlers.NewPermissionHandler(deps.Engine)
	if err != nil {
		return err
	}

	me := api.Group("/me")
	me.Use(middleware.TenantContext(deps.Resolver))
	{
		me.GET("/permissions", handler.ListMine)
	}

	return nil
}
