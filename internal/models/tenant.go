package models

import "gorm.io/datatypes"

// TenantStatus enumerates the tenant lifecycle states persisted in the
// platform catalog. Exactly these four values are ever stored.
type TenantStatus string

const (
	TenantStatusProvisioning TenantStatus = "provisioning"
	TenantStatusActive       TenantStatus = "active"
	TenantStatusSuspended    TenantStatus = "suspended"
	TenantStatusDeleted      TenantStatus = "deleted"
)

// Valid reports whether the status is one of the four persisted values.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusProvisioning, TenantStatusActive, TenantStatusSuspended, TenantStatusDeleted:
		return true
	}
	return false
}

// Tenant is the platform catalog record for an isolated tenant. The row is
// never physically removed; deletion is a status transition and the isolated
// database is left in place.
type Tenant struct {
	BaseModel

	Name         string       `gorm:"not null" json:"name"`
	Slug         string       `gorm:"uniqueIndex;not null" json:"slug"`
	DatabaseName string       `gorm:"uniqueIndex;not null" json:"database_name"`
	Status       TenantStatus `gorm:"type:varchar(16);not null;default:'provisioning';index" json:"status"`

	ParentID *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Parent   *Tenant `gorm:"foreignKey:ParentID" json:"parent,omitempty"`

	Settings datatypes.JSON `json:"settings"`
	Features datatypes.JSON `json:"features"`

	// Usage limits are informational to this core; enforcement lives with
	// the content services that consume them.
	MaxUsers     int   `gorm:"default:0" json:"max_users"`
	MaxEntries   int   `gorm:"default:0" json:"max_entries"`
	MaxStorageMB int64 `gorm:"default:0" json:"max_storage_mb"`
}
