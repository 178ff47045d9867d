package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestTenantStatusValid(t *testing.T) {
	for _, status := range []TenantStatus{
		TenantStatusProvisioning, TenantStatusActive, TenantStatusSuspended, TenantStatusDeleted,
	} {
		require.True(t, status.Valid(), "status %q", status)
	}

	require.False(t, TenantStatus("archived").Valid())
	require.False(t, TenantStatus("").Valid())
}

func TestBeforeCreateGeneratesIdentifiers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Tenant{}, &User{}, &Role{}, &Permission{}, &AuditLog{}))

	tenant := Tenant{Name: "Acme Corp", Slug: "acme-corp", DatabaseName: "cms_tenant_acme_corp"}
	require.NoError(t, db.Create(&tenant).Error)
	require.NotEmpty(t, tenant.ID)
	require.Equal(t, TenantStatusProvisioning, tenant.Status)

	user := User{Username: "admin", Email: "admin@example.com"}
	require.NoError(t, db.Create(&user).Error)
	require.NotEmpty(t, user.ID)
}

func TestTenantSlugUniqueIndex(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Tenant{}))

	first := Tenant{Name: "Acme", Slug: "acme", DatabaseName: "cms_tenant_acme"}
	require.NoError(t, db.Create(&first).Error)

	dup := Tenant{Name: "Acme Two", Slug: "acme", DatabaseName: "cms_tenant_acme_2"}
	require.Error(t, db.Create(&dup).Error)
}
