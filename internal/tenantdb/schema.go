package tenantdb

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/database"
)

// Table names inside every isolated tenant database. The permission engine
// introspects these; dynamic queries bind values only and reference tables
// through these constants, never through caller input.
const (
	TableUsers           = "users"
	TableRoles           = "roles"
	TableUserRoles       = "user_roles"
	TableRolePermissions = "role_permissions"
	TablePermissions     = "permissions" // legacy generation only
	TableProjects        = "projects"
)

// TenantAdminRole is implicitly granted every permission on the inline
// permission generation.
const TenantAdminRole = "Tenant Admin"

// SchemaVersion is an ordered batch of statements establishing one revision
// of the tenant schema.
type SchemaVersion struct {
	Version    int
	Statements []string
}

// schemaVersions is the versioned schema applied to new tenant databases, in
// order. Version 1 is the original content schema; version 2 introduced the
// inline role_permissions layout that replaced the legacy permission
// definition table.
var schemaVersions = []SchemaVersion{
	{
		Version: 1,
		Statements: []string{
			`CREATE TABLE users (
				id VARCHAR(36) PRIMARY KEY,
				username VARCHAR(255) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP,
				updated_at TIMESTAMP
			)`,
			`CREATE TABLE roles (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				description VARCHAR(512) NOT NULL DEFAULT '',
				created_at TIMESTAMP
			)`,
			`CREATE TABLE user_roles (
				user_id VARCHAR(36) NOT NULL,
				role_id VARCHAR(36) NOT NULL,
				PRIMARY KEY (user_id, role_id)
			)`,
			`CREATE TABLE projects (
				id VARCHAR(36) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				is_default BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP
			)`,
			`CREATE TABLE content_types (
				id VARCHAR(36) PRIMARY KEY,
				project_id VARCHAR(36) NOT NULL,
				name VARCHAR(255) NOT NULL,
				api_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP
			)`,
			`CREATE TABLE content_entries (
				id VARCHAR(36) PRIMARY KEY,
				content_type_id VARCHAR(36) NOT NULL,
				data TEXT,
				status VARCHAR(32) NOT NULL DEFAULT 'draft',
				created_at TIMESTAMP,
				updated_at TIMESTAMP
			)`,
		},
	},
	{
		Version: 2,
		Statements: []string{
			`CREATE TABLE role_permissions (
				role_id VARCHAR(36) NOT NULL,
				resource_type VARCHAR(128) NOT NULL,
				action VARCHAR(64) NOT NULL,
				PRIMARY KEY (role_id, resource_type, action)
			)`,
			`CREATE INDEX idx_content_entries_type ON content_entries (content_type_id)`,
			`CREATE INDEX idx_user_roles_user ON user_roles (user_id)`,
		},
	},
}

// SchemaStatements returns every statement of every schema version, in
// application order.
func SchemaStatements() []string {
	var stmts []string
	for _, version := range schemaVersions {
		stmts = append(stmts, version.Statements...)
	}
	return stmts
}

// ApplySchema executes the versioned schema against a tenant database.
// Statements failing because the target object already exists count as
// success; any other statement failure is collected and logged as a warning
// but never aborts the remaining statements.
func ApplySchema(db *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	var warnings error
	for _, version := range schemaVersions {
		for _, stmt := range version.Statements {
			err := db.Exec(stmt).Error
			if err == nil {
				continue
			}
			if database.IsAlreadyExistsError(err) {
				log.Debug("schema object already exists",
					zap.Int("schema_version", version.Version))
				continue
			}

			log.Warn("schema statement failed",
				zap.Int("schema_version", version.Version),
				zap.Error(err))
			warnings = multierr.Append(warnings, fmt.Errorf("schema v%d: %w", version.Version, err))
		}
	}
	return warnings
}

// SeedDefaults ensures the baseline records every tenant database starts
// with: the Tenant Admin role and a default project.
func SeedDefaults(db *gorm.DB) error {
	var roleCount int64
	if err := db.Table(TableRoles).Where("name = ?", TenantAdminRole).Count(&roleCount).Error; err != nil {
		return fmt.Errorf("count admin role: %w", err)
	}
	if roleCount == 0 {
		err := db.Exec(
			"INSERT INTO roles (id, name, description, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)",
			uuid.NewString(), TenantAdminRole, "Full access to the tenant workspace",
		).Error
		if err != nil {
			return fmt.Errorf("seed admin role: %w", err)
		}
	}

	var projectCount int64
	if err := db.Table(TableProjects).Count(&projectCount).Error; err != nil {
		return fmt.Errorf("count projects: %w", err)
	}
	if projectCount == 0 {
		err := db.Exec(
			"INSERT INTO projects (id, name, slug, is_default, created_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)",
			uuid.NewString(), "Default Project", "default", true,
		).Error
		if err != nil {
			return fmt.Errorf("seed default project: %w", err)
		}
	}

	return nil
}
