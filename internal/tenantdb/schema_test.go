package tenantdb

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTenantTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestApplySchemaCreatesAllTables(t *testing.T) {
	db := openTenantTestDB(t)

	require.NoError(t, ApplySchema(db, zap.NewNop()))

	for _, table := range []string{
		TableUsers, TableRoles, TableUserRoles, TableRolePermissions, TableProjects,
		"content_types", "content_entries",
	} {
		require.True(t, db.Migrator().HasTable(table), "missing table %q", table)
	}

	// The legacy definition table is never part of the current schema.
	require.False(t, db.Migrator().HasTable(TablePermissions))
}

func TestApplySchemaIsIdempotent(t *testing.T) {
	db := openTenantTestDB(t)

	require.NoError(t, ApplySchema(db, zap.NewNop()))
	// Second application hits "already exists" on every statement; those are
	// branch conditions, not faults.
	require.NoError(t, ApplySchema(db, zap.NewNop()))
}

func TestSeedDefaults(t *testing.T) {
	db := openTenantTestDB(t)
	require.NoError(t, ApplySchema(db, zap.NewNop()))

	require.NoError(t, SeedDefaults(db))
	require.NoError(t, SeedDefaults(db), "seeding twice must not duplicate")

	var roleCount int64
	require.NoError(t, db.Table(TableRoles).Where("name = ?", TenantAdminRole).Count(&roleCount).Error)
	require.EqualValues(t, 1, roleCount)

	var projectCount int64
	require.NoError(t, db.Table(TableProjects).Where("is_default = ?", true).Count(&projectCount).Error)
	require.EqualValues(t, 1, projectCount)
}

func TestSchemaStatementsOrdered(t *testing.T) {
	stmts := SchemaStatements()
	require.NotEmpty(t, stmts)

	// users must come before the join table that references it.
	var usersIdx, userRolesIdx int
	for i, stmt := range stmts {
		switch {
		case strings.HasPrefix(stmt, "CREATE TABLE users"):
			usersIdx = i
		case strings.HasPrefix(stmt, "CREATE TABLE user_roles"):
			userRolesIdx = i
		}
	}
	require.Less(t, usersIdx, userRolesIdx)
}
