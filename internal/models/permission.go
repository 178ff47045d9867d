package models

// Permission is a platform-level permission definition. Name is the canonical
// resource:action form; Resource and Action store the split parts for
// filtering in admin views.
type Permission struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Resource    string `gorm:"not null;index" json:"resource"`
	Action      string `gorm:"not null" json:"action"`
	Category    string `gorm:"index" json:"category"`
	Description string `json:"description"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
}
