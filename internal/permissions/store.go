package permissions

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/tenantdb"
)

// Generation identifies which on-disk permission layout a tenant database
// exposes.
type Generation int

const (
	// GenerationLegacy stores permission definitions in their own table,
	// joined to roles through role_permissions(role_id, permission_id).
	GenerationLegacy Generation = iota + 1
	// GenerationV2 stores grants inline as
	// role_permissions(role_id, resource_type, action) tuples.
	GenerationV2
)

func (g Generation) String() string {
	switch g {
	case GenerationLegacy:
		return "legacy"
	case GenerationV2:
		return "v2"
	default:
		return fmt.Sprintf("generation(%d)", int(g))
	}
}

// DetectGeneration probes the tenant database's own metadata for the legacy
// permission-definition table. The probe runs on every call and is never
// cached: tenant databases migrate independently, so the result is a property
// of this connection, not of the deployment.
func DetectGeneration(db *gorm.DB) Generation {
	if db.Migrator().HasTable(tenantdb.TablePermissions) {
		return GenerationLegacy
	}
	return GenerationV2
}

// tenantRole is a role held by a principal inside a tenant database. Both
// generations key grants by role id; the name matters only for the v2
// implicit admin grant.
type tenantRole struct {
	ID   string
	Name string
}

// store resolves permission names against one schema generation. Both
// implementations receive the roles already loaded from user_roles; an empty
// role set never reaches a store.
type store interface {
	Has(ctx context.Context, db *gorm.DB, roles []tenantRole, permission string) (bool, error)
	List(ctx context.Context, db *gorm.DB, roles []tenantRole) ([]string, error)
}

func storeFor(generation Generation) store {
	if generation == GenerationLegacy {
		return legacyStore{}
	}
	return v2Store{}
}

// legacyStore joins role_permissions to the permission-definition table and
// compares canonical names.
type legacyStore struct{}

func (legacyStore) Has(ctx context.Context, db *gorm.DB, roles []tenantRole, permission string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Table(tenantdb.TableRolePermissions+" AS rp").
		Joins("JOIN "+tenantdb.TablePermissions+" AS p ON p.id = rp.permission_id").
		Where("rp.role_id IN ?", roleIDs(roles)).
		Where("p.name = ?", permission).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("legacy permission lookup: %w", err)
	}
	return count > 0, nil
}

func (legacyStore) List(ctx context.Context, db *gorm.DB, roles []tenantRole) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).
		Table(tenantdb.TableRolePermissions+" AS rp").
		Joins("JOIN "+tenantdb.TablePermissions+" AS p ON p.id = rp.permission_id").
		Where("rp.role_id IN ?", roleIDs(roles)).
		Distinct("p.name").
		Pluck("p.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("legacy permission listing: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// v2Store reads inline (role_id, resource_type, action) grants. A role named
// Tenant Admin is implicitly granted everything; a stored action of "*"
// matches any requested action for its resource.
type v2Store struct{}

func (v2Store) Has(ctx context.Context, db *gorm.DB, roles []tenantRole, permission string) (bool, error) {
	if holdsTenantAdmin(roles) {
		return true, nil
	}

	resource, action, ok := SplitName(permission)
	if !ok {
		return false, nil
	}

	var count int64
	err := db.WithContext(ctx).
		Table(tenantdb.TableRolePermissions).
		Where("role_id IN ?", roleIDs(roles)).
		Where("resource_type = ?", resource).
		Where("action IN ?", []string{action, Wildcard}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("inline permission lookup: %w", err)
	}
	return count > 0, nil
}

func (v2Store) List(ctx context.Context, db *gorm.DB, roles []tenantRole) ([]string, error) {
	if holdsTenantAdmin(roles) {
		return []string{JoinName(Wildcard, Wildcard)}, nil
	}

	var rows []struct {
		ResourceType string
		Action       string
	}
	err := db.WithContext(ctx).
		Table(tenantdb.TableRolePermissions).
		Where("role_id IN ?", roleIDs(roles)).
		Distinct("resource_type", "action").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("inline permission listing: %w", err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, JoinName(row.ResourceType, row.Action))
	}
	sort.Strings(names)
	return names, nil
}

func holdsTenantAdmin(roles []tenantRole) bool {
	for _, role := range roles {
		if role.Name == tenantdb.TenantAdminRole {
			return true
		}
	}
	return false
}

func roleIDs(roles []tenantRole) []string {
	ids := make([]string, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}
