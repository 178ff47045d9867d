package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/models"
	"github.com/tidecms/tidecms/internal/tenantdb"
	apperrors "github.com/tidecms/tidecms/pkg/errors"
	"github.com/tidecms/tidecms/pkg/metrics"
)

// tenantDirectory supplies the isolated-database name for a tenant id. The
// tenant registry satisfies it.
type tenantDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
}

// Engine resolves whether a principal holds a named permission. Platform
// permissions resolve against the shared catalog; tenant permissions resolve
// through the connection router against the tenant's isolated database,
// adapting to whichever permission generation that database exposes.
type Engine struct {
	catalog *gorm.DB
	router  *tenantdb.Router
	tenants tenantDirectory
}

// NewEngine constructs a permission engine over the platform catalog and the
// tenant connection router.
func NewEngine(catalog *gorm.DB, router *tenantdb.Router, tenants tenantDirectory) (*Engine, error) {
	if catalog == nil {
		return nil, errors.New("permission engine: catalog db is required")
	}
	if router == nil {
		return nil, errors.New("permission engine: router is required")
	}
	if tenants == nil {
		return nil, errors.New("permission engine: tenant directory is required")
	}
	return &Engine{catalog: catalog, router: router, tenants: tenants}, nil
}

// HasPermission reports whether the user holds the named permission. A nil
// tenantID means the check runs in platform scope: platform permissions
// resolve against the catalog, and tenant permissions succeed outright
// because only the platform super-user operates without a tenant context.
func (e *Engine) HasPermission(ctx context.Context, userID string, tenantID *string, permission string) (allowed bool, err error) {
	ctx = ensureContext(ctx)
	defer func() { observeCheck(permission, allowed, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("permission engine: user id is required")
	}
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return false, errors.New("permission engine: permission name is required")
	}

	if IsPlatformPermission(permission) {
		if tenantID != nil {
			return false, apperrors.ErrForbidden.WithMessage("platform permissions cannot be checked in a tenant scope")
		}
		return e.hasPlatformPermission(ctx, userID, permission)
	}

	if tenantID == nil {
		return true, nil
	}
	return e.hasTenantPermission(ctx, userID, *tenantID, permission)
}

// HasAnyPermission reports whether the user holds at least one of the named
// permissions. Evaluation stops at the first grant.
func (e *Engine) HasAnyPermission(ctx context.Context, userID string, tenantID *string, perms []string) (bool, error) {
	for _, permission := range perms {
		ok, err := e.HasPermission(ctx, userID, tenantID, permission)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the user holds every named permission.
// Evaluation stops at the first denial.
func (e *Engine) HasAllPermissions(ctx context.Context, userID string, tenantID *string, perms []string) (bool, error) {
	for _, permission := range perms {
		ok, err := e.HasPermission(ctx, userID, tenantID, permission)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ListPermissions returns the distinct permission names granted to the user,
// in platform scope when tenantID is nil, otherwise inside the tenant's
// isolated database. On the inline generation a Tenant Admin lists as "*:*".
func (e *Engine) ListPermissions(ctx context.Context, userID string, tenantID *string) ([]string, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("permission engine: user id is required")
	}

	if tenantID == nil {
		return e.listPlatformPermissions(ctx, userID)
	}
	return e.listTenantPermissions(ctx, userID, *tenantID)
}

func (e *Engine) hasPlatformPermission(ctx context.Context, userID, permission string) (bool, error) {
	user, err := e.loadCatalogUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if user.IsPlatformAdmin {
		return true, nil
	}

	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			if perm.Name == permission {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *Engine) listPlatformPermissions(ctx context.Context, userID string) ([]string, error) {
	user, err := e.loadCatalogUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.IsPlatformAdmin {
		var names []string
		err := e.catalog.WithContext(ctx).
			Model(&models.Permission{}).
			Distinct("name").
			Pluck("name", &names).Error
		if err != nil {
			return nil, fmt.Errorf("permission engine: list catalog permissions: %w", err)
		}
		sort.Strings(names)
		return names, nil
	}

	seen := make(map[string]struct{})
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			seen[perm.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (e *Engine) hasTenantPermission(ctx context.Context, userID, tenantID, permission string) (bool, error) {
	record, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}

	var granted bool
	err = e.router.WithConnection(ctx, record.DatabaseName, func(db *gorm.DB) error {
		roles, err := loadTenantRoles(ctx, db, userID)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return nil
		}

		granted, err = storeFor(DetectGeneration(db)).Has(ctx, db, roles, permission)
		return err
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (e *Engine) listTenantPermissions(ctx context.Context, userID, tenantID string) ([]string, error) {
	record, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var names []string
	err = e.router.WithConnection(ctx, record.DatabaseName, func(db *gorm.DB) error {
		roles, err := loadTenantRoles(ctx, db, userID)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			names = []string{}
			return nil
		}

		names, err = storeFor(DetectGeneration(db)).List(ctx, db, roles)
		return err
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (e *Engine) loadCatalogUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := e.catalog.WithContext(ctx).
		Preload("Roles.Permissions").
		First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("user not found")
		}
		return nil, fmt.Errorf("permission engine: load user: %w", err)
	}
	return &user, nil
}

func loadTenantRoles(ctx context.Context, db *gorm.DB, userID string) ([]tenantRole, error) {
	var roles []tenantRole
	err := db.WithContext(ctx).
		Table(tenantdb.TableUserRoles+" AS ur").
		Joins("JOIN "+tenantdb.TableRoles+" AS r ON r.id = ur.role_id").
		Where("ur.user_id = ?", userID).
		Select("r.id AS id", "r.name AS name").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("permission engine: load tenant roles: %w", err)
	}
	return roles, nil
}

func observeCheck(permission string, allowed bool, err error) {
	result := "denied"
	switch {
	case err != nil:
		result = "error"
	case allowed:
		result = "allowed"
	}
	metrics.PermissionChecks.WithLabelValues(permission, result).Inc()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
