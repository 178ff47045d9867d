package permissions

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/models"
	"github.com/tidecms/tidecms/internal/tenantdb"
	apperrors "github.com/tidecms/tidecms/pkg/errors"
)

type staticDirectory map[string]*models.Tenant

func (d staticDirectory) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	if tenant, ok := d[id]; ok {
		return tenant, nil
	}
	return nil, apperrors.ErrNotFound.WithMessage("tenant not found")
}

type fixedOpener struct {
	dbs   map[string]*gorm.DB
	opens int
}

func (o *fixedOpener) Open(database string) (*gorm.DB, func() error, error) {
	db, ok := o.dbs[database]
	if !ok {
		return nil, nil, fmt.Errorf("no fixture for database %q", database)
	}
	o.opens++
	return db, func() error { return nil }, nil
}

func openCatalogDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Role{}, &models.Permission{}))
	return db
}

// openV2TenantDB applies the full versioned schema, which yields the inline
// role_permissions layout and no permission-definition table.
func openV2TenantDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, tenantdb.ApplySchema(db, nil))
	return db
}

func openLegacyTenantDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE roles (id VARCHAR(36) PRIMARY KEY, name VARCHAR(255) NOT NULL UNIQUE)`,
		`CREATE TABLE user_roles (user_id VARCHAR(36) NOT NULL, role_id VARCHAR(36) NOT NULL)`,
		`CREATE TABLE permissions (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			resource VARCHAR(128) NOT NULL,
			action VARCHAR(64) NOT NULL,
			category VARCHAR(128)
		)`,
		`CREATE TABLE role_permissions (role_id VARCHAR(36) NOT NULL, permission_id VARCHAR(36) NOT NULL)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func grantTenantRole(t *testing.T, db *gorm.DB, userID, roleName string) string {
	t.Helper()

	roleID := uuid.NewString()
	require.NoError(t, db.Exec("INSERT INTO roles (id, name) VALUES (?, ?)", roleID, roleName).Error)
	require.NoError(t, db.Exec("INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)", userID, roleID).Error)
	return roleID
}

func newTestEngine(t *testing.T, tenantDBs map[string]*gorm.DB, tenants staticDirectory) (*Engine, *gorm.DB, *fixedOpener) {
	t.Helper()

	catalog := openCatalogDB(t)
	opener := &fixedOpener{dbs: tenantDBs}
	router, err := tenantdb.NewRouterWithOpener(opener)
	require.NoError(t, err)

	engine, err := NewEngine(catalog, router, tenants)
	require.NoError(t, err)
	return engine, catalog, opener
}

func TestDetectGeneration(t *testing.T) {
	require.Equal(t, GenerationV2, DetectGeneration(openV2TenantDB(t)))
	require.Equal(t, GenerationLegacy, DetectGeneration(openLegacyTenantDB(t)))
}

func TestTenantPermissionV2(t *testing.T) {
	tenantDB := openV2TenantDB(t)
	tenantID := uuid.NewString()
	engine, _, _ := newTestEngine(t,
		map[string]*gorm.DB{"cms_tenant_acme": tenantDB},
		staticDirectory{tenantID: {Slug: "acme", DatabaseName: "cms_tenant_acme"}},
	)

	admin := uuid.NewString()
	grantTenantRole(t, tenantDB, admin, tenantdb.TenantAdminRole)

	editor := uuid.NewString()
	editorRole := grantTenantRole(t, tenantDB, editor, "Editor")
	require.NoError(t, tenantDB.Exec(
		"INSERT INTO role_permissions (role_id, resource_type, action) VALUES (?, ?, ?)",
		editorRole, "content_entry", "read",
	).Error)

	viewer := uuid.NewString()
	grantTenantRole(t, tenantDB, viewer, "Viewer")

	ok, err := engine.HasPermission(context.Background(), admin, &tenantID, "content_entry:read")
	require.NoError(t, err)
	require.True(t, ok, "Tenant Admin is implicitly granted everything")

	ok, err = engine.HasPermission(context.Background(), editor, &tenantID, "content_entry:read")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.HasPermission(context.Background(), editor, &tenantID, "content_entry:delete")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.HasPermission(context.Background(), viewer, &tenantID, "content_entry:read")
	require.NoError(t, err)
	require.False(t, ok, "unrelated role holds no matching row")

	ok, err = engine.HasPermission(context.Background(), uuid.NewString(), &tenantID, "content_entry:read")
	require.NoError(t, err)
	require.False(t, ok, "no roles means no grants")
}

func TestTenantPermissionV2WildcardAction(t *testing.T) {
	tenantDB := openV2TenantDB(t)
	tenantID := uuid.NewString()
	engine, _, _ := newTestEngine(t,
		map[string]*gorm.DB{"cms_tenant_acme": tenantDB},
		staticDirectory{tenantID: {Slug: "acme", DatabaseName: "cms_tenant_acme"}},
	)

	user := uuid.NewString()
	roleID := grantTenantRole(t, tenantDB, user, "Content Manager")
	require.NoError(t, tenantDB.Exec(
		"INSERT INTO role_permissions (role_id, resource_type, action) VALUES (?, ?, ?)",
		roleID, "content_entry", Wildcard,
	).Error)

	for _, permission := range []string{"content_entry:read", "content_entry:delete"} {
		ok, err := engine.HasPermission(context.Background(), user, &tenantID, permission)
		require.NoError(t, err)
		require.True(t, ok, permission)
	}

	ok, err := engine.HasPermission(context.Background(), user, &tenantID, "role:create")
	require.NoError(t, err)
	require.False(t, ok, "wildcard is scoped to its resource")
}

func TestTenantPermissionLegacy(t *testing.T) {
	tenantDB := openLegacyTenantDB(t)
	tenantID := uuid.NewString()
	engine, _, _ := newTestEngine(t,
		map[string]*gorm.DB{"cms_tenant_legacy": tenantDB},
		staticDirectory{tenantID: {Slug: "legacy", DatabaseName: "cms_tenant_legacy"}},
	)

	user := uuid.NewString()
	roleID := grantTenantRole(t, tenantDB, user, "Editor")

	permID := uuid.NewString()
	require.NoError(t, tenantDB.Exec(
		"INSERT INTO permissions (id, name, resource, action, category) VALUES (?, ?, ?, ?, ?)",
		permID, "content_entry:read", "content_entry", "read", "content",
	).Error)
	require.NoError(t, tenantDB.Exec(
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
		roleID, permID,
	).Error)

	ok, err := engine.HasPermission(context.Background(), user, &tenantID, "content_entry:read")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.HasPermission(context.Background(), user, &tenantID, "content_entry:delete")
	require.NoError(t, err)
	require.False(t, ok)

	// Tenant Admin carries no implicit grant on the legacy generation.
	admin := uuid.NewString()
	grantTenantRole(t, tenantDB, admin, tenantdb.TenantAdminRole)
	ok, err = engine.HasPermission(context.Background(), admin, &tenantID, "content_entry:read")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPlatformPermissionDispatch(t *testing.T) {
	tenantID := uuid.NewString()
	engine, catalog, _ := newTestEngine(t,
		map[string]*gorm.DB{},
		staticDirectory{tenantID: {Slug: "acme", DatabaseName: "cms_tenant_acme"}},
	)

	operator := &models.User{Username: "operator", Email: "op@example.com"}
	require.NoError(t, catalog.Create(operator).Error)
	role := &models.Role{Name: "tenant-operator", Permissions: []models.Permission{
		{Name: "tenants:create", Resource: "tenants", Action: "create"},
	}}
	require.NoError(t, catalog.Create(role).Error)
	require.NoError(t, catalog.Model(operator).Association("Roles").Append(role))

	// Platform permissions are never tenant-scoped.
	_, err := engine.HasPermission(context.Background(), operator.ID, &tenantID, "tenants:create")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	ok, err := engine.HasPermission(context.Background(), operator.ID, nil, "tenants:create")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.HasPermission(context.Background(), operator.ID, nil, "tenants:delete")
	require.NoError(t, err)
	require.False(t, ok)

	// A tenant-level check without a tenant context is the super-user bypass.
	ok, err = engine.HasPermission(context.Background(), operator.ID, nil, "content_entry:read")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPlatformAdminShortCircuit(t *testing.T) {
	engine, catalog, _ := newTestEngine(t, map[string]*gorm.DB{}, staticDirectory{})

	admin := &models.User{Username: "root", Email: "root@example.com", IsPlatformAdmin: true}
	require.NoError(t, catalog.Create(admin).Error)

	ok, err := engine.HasPermission(context.Background(), admin.ID, nil, "platform:admin")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHasAnyPermissionShortCircuits(t *testing.T) {
	tenantDB := openV2TenantDB(t)
	tenantID := uuid.NewString()
	engine, _, opener := newTestEngine(t,
		map[string]*gorm.DB{"cms_tenant_acme": tenantDB},
		staticDirectory{tenantID: {Slug: "acme", DatabaseName: "cms_tenant_acme"}},
	)

	user := uuid.NewString()
	grantTenantRole(t, tenantDB, user, tenantdb.TenantAdminRole)

	ok, err := engine.HasAnyPermission(context.Background(), user, &tenantID, []string{"role:create", "role:update"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, opener.opens, "second check must not be evaluated")
}

func TestHasAllPermissions(t *testing.T) {
	tenantDB := openV2TenantDB(t)
	tenantID := uuid.NewString()
	engine, _, _ := newTestEngine(t,
		map[string]*gorm.DB{"cms_tenant_acme": tenantDB},
		staticDirectory{tenantID: {Slug: "acme", DatabaseName: "cms_tenant_acme"}},
	)

	user := uuid.NewString()
	roleID := grantTenantRole(t, tenantDB, user, "Editor")
	require.NoError(t, tenantDB.Exec(
		"INSERT INTO role_permissions (role_id, resource_type, action) VALUES (?, ?, ?)",
		roleID, "content_entry", "read",
	).Error)

	ok, err := engine.HasAllPermissions(context.Background(), user, &tenantID, []string{"content_entry:read"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.HasAllPermissions(context.Background(), user, &tenantID, []string{"content_entry:read", "content_entry:delete"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListPermissions(t *testing.T) {
	v2DB := openV2TenantDB(t)
	legacyDB := openLegacyTenantDB(t)
	v2ID := uuid.NewString()
	legacyID := uuid.NewString()
	engine, catalog, _ := newTestEngine(t,
		map[string]*gorm.DB{
			"cms_tenant_acme":   v2DB,
			"cms_tenant_legacy": legacyDB,
		},
		staticDirectory{
			v2ID:     {Slug: "acme", DatabaseName: "cms_tenant_acme"},
			legacyID: {Slug: "legacy", DatabaseName: "cms_tenant_legacy"},
		},
	)

	admin := uuid.NewString()
	grantTenantRole(t, v2DB, admin, tenantdb.TenantAdminRole)
	names, err := engine.ListPermissions(context.Background(), admin, &v2ID)
	require.NoError(t, err)
	require.Equal(t, []string{"*:*"}, names)

	editor := uuid.NewString()
	roleID := grantTenantRole(t, v2DB, editor, "Editor")
	for _, action := range []string{"read", "update"} {
		require.NoError(t, v2DB.Exec(
			"INSERT INTO role_permissions (role_id, resource_type, action) VALUES (?, ?, ?)",
			roleID, "content_entry", action,
		).Error)
	}
	names, err = engine.ListPermissions(context.Background(), editor, &v2ID)
	require.NoError(t, err)
	require.Equal(t, []string{"content_entry:read", "content_entry:update"}, names)

	legacyUser := uuid.NewString()
	legacyRole := grantTenantRole(t, legacyDB, legacyUser, "Editor")
	permID := uuid.NewString()
	require.NoError(t, legacyDB.Exec(
		"INSERT INTO permissions (id, name, resource, action, category) VALUES (?, ?, ?, ?, ?)",
		permID, "content_entry:read", "content_entry", "read", "content",
	).Error)
	require.NoError(t, legacyDB.Exec(
		"INSERT INTO role_permissions (role_id, permission_id) VALUES (?, ?)",
		legacyRole, permID,
	).Error)
	names, err = engine.ListPermissions(context.Background(), legacyUser, &legacyID)
	require.NoError(t, err)
	require.Equal(t, []string{"content_entry:read"}, names)

	// Platform scope lists catalog grants.
	platformUser := &models.User{Username: "operator", Email: "op@example.com"}
	require.NoError(t, catalog.Create(platformUser).Error)
	platformRole := &models.Role{Name: "tenant-operator", Permissions: []models.Permission{
		{Name: "tenants:create", Resource: "tenants", Action: "create"},
		{Name: "tenants:read", Resource: "tenants", Action: "read"},
	}}
	require.NoError(t, catalog.Create(platformRole).Error)
	require.NoError(t, catalog.Model(platformUser).Association("Roles").Append(platformRole))

	names, err = engine.ListPermissions(context.Background(), platformUser.ID, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"tenants:create", "tenants:read"}, names)
}

func TestUnknownTenantSurfacesNotFound(t *testing.T) {
	engine, _, _ := newTestEngine(t, map[string]*gorm.DB{}, staticDirectory{})

	missing := uuid.NewString()
	_, err := engine.HasPermission(context.Background(), uuid.NewString(), &missing, "content_entry:read")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
