package database

import (
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/models"
)

// AutoMigrate creates or updates the platform catalog schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Tenant{},
		&models.Role{},
		&models.Permission{},
		&models.AuditLog{},
	)
}

// platformPermissions are the platform-level permission definitions seeded
// into the catalog. Names use the reserved platform prefixes; everything
// outside those prefixes is tenant-scoped and lives in tenant databases.
var platformPermissions = []models.Permission{
	{Name: "platform:admin", Resource: "platform", Action: "admin", Category: "platform", Description: "Full platform administration"},
	{Name: "system:settings", Resource: "system", Action: "settings", Category: "platform", Description: "Manage system settings"},
	{Name: "tenants:create", Resource: "tenants", Action: "create", Category: "tenants", Description: "Register new tenants"},
	{Name: "tenants:read", Resource: "tenants", Action: "read", Category: "tenants", Description: "View tenant records"},
	{Name: "tenants:update", Resource: "tenants", Action: "update", Category: "tenants", Description: "Update tenant configuration and status"},
	{Name: "tenants:delete", Resource: "tenants", Action: "delete", Category: "tenants", Description: "Retire tenants"},
}

// SeedData populates default platform roles and permission definitions.
func SeedData(db *gorm.DB) error {
	for _, perm := range platformPermissions {
		if err := db.Where(models.Permission{Name: perm.Name}).Attrs(perm).FirstOrCreate(&models.Permission{}).Error; err != nil {
			return err
		}
	}

	roles := []models.Role{
		{
			BaseModel:   models.BaseModel{ID: "platform-admin"},
			Name:        "Platform Administrator",
			Description: "Full platform access",
			IsSystem:    true,
		},
		{
			BaseModel:   models.BaseModel{ID: "tenant-operator"},
			Name:        "Tenant Operator",
			Description: "Manages tenant lifecycle",
			IsSystem:    true,
		},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{BaseModel: models.BaseModel{ID: role.ID}}).Attrs(role).FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}

	adminPerms, err := permissionIDsByName(db,
		"platform:admin", "system:settings",
		"tenants:create", "tenants:read", "tenants:update", "tenants:delete",
	)
	if err != nil {
		return err
	}
	if err := assignRolePermissions(db, "platform-admin", adminPerms); err != nil {
		return err
	}

	operatorPerms, err := permissionIDsByName(db,
		"tenants:create", "tenants:read", "tenants:update",
	)
	if err != nil {
		return err
	}
	return assignRolePermissions(db, "tenant-operator", operatorPerms)
}

func permissionIDsByName(db *gorm.DB, names ...string) ([]string, error) {
	var perms []models.Permission
	if err := db.Where("name IN ?", names).Find(&perms).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(perms))
	for _, perm := range perms {
		ids = append(ids, perm.ID)
	}
	return ids, nil
}
