package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/app"
	iauth "github.com/tidecms/tidecms/internal/auth"
	"github.com/tidecms/tidecms/internal/handlers"
	"github.com/tidecms/tidecms/internal/middleware"
	"github.com/tidecms/tidecms/internal/permissions"
	"github.com/tidecms/tidecms/internal/tenant"
)

// Dependencies bundles the collaborators the HTTP surface is built from.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	JWT      *iauth.JWTService
	Registry *tenant.Registry
	Resolver *tenant.Resolver
	Worker   *tenant.Worker
	Engine   *permissions.Engine
}

// NewRouter builds the Gin engine, wires middleware and registers core routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Registry == nil || deps.Resolver == nil || deps.Worker == nil || deps.Engine == nil {
		return nil, fmt.Errorf("tenant and permission collaborators must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	r.GET("/health", handlers.Health(deps.DB))

	if deps.Config.Metrics.Enabled {
		endpoint := deps.Config.Metrics.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	if err := registerTenantRoutes(api, deps); err != nil {
		return nil, err
	}
	if err := registerPermissionRoutes(api, deps); err != nil {
		return nil, err
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
