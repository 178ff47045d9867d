package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/database"
	"github.com/tidecms/tidecms/internal/models"
	"github.com/tidecms/tidecms/internal/services"
	"github.com/tidecms/tidecms/internal/tenantdb"
	apperrors "github.com/tidecms/tidecms/pkg/errors"
	"github.com/tidecms/tidecms/pkg/validator"
)

// CreateTenantInput captures the attributes required to register a tenant.
type CreateTenantInput struct {
	Name     string         `json:"name" validate:"required,min=2,max=128"`
	Slug     string         `json:"slug" validate:"required,min=2,max=64,slug"`
	ParentID *string        `json:"parent_id" validate:"omitempty,uuid"`
	Settings map[string]any `json:"settings"`
	Features map[string]any `json:"features"`
}

// UpdateTenantInput represents mutable tenant fields. Status transitions go
// through UpdateStatus instead.
type UpdateTenantInput struct {
	Name     *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Settings map[string]any `json:"settings"`
	Features map[string]any `json:"features"`
}

// Registry is the single source of truth for tenant identity, isolated
// database names, and lifecycle status. It only ever touches the shared
// platform catalog.
type Registry struct {
	db    *gorm.DB
	audit *services.AuditService
}

// NewRegistry constructs a Registry backed by the platform catalog.
func NewRegistry(db *gorm.DB, audit *services.AuditService) (*Registry, error) {
	if db == nil {
		return nil, errors.New("tenant registry: db is required")
	}
	return &Registry{db: db, audit: audit}, nil
}

// Create registers a new tenant in provisioning status. The isolated database
// name is derived from the slug; slug uniqueness is enforced by the storage
// layer's unique index, so concurrent registrations of the same slug lose
// deterministically with a conflict.
func (r *Registry) Create(ctx context.Context, input CreateTenantInput) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(input.Slug)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	tenant := &models.Tenant{
		Name:         input.Name,
		Slug:         input.Slug,
		DatabaseName: tenantdb.DeriveDatabaseName(input.Slug),
		Status:       models.TenantStatusProvisioning,
		ParentID:     input.ParentID,
	}

	var err error
	if tenant.Settings, err = marshalJSONMap(input.Settings); err != nil {
		return nil, fmt.Errorf("tenant registry: marshal settings: %w", err)
	}
	if tenant.Features, err = marshalJSONMap(input.Features); err != nil {
		return nil, fmt.Errorf("tenant registry: marshal features: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, apperrors.NewConflict("tenant slug already in use").WithInternal(err)
		}
		return nil, fmt.Errorf("tenant registry: create tenant: %w", err)
	}

	r.recordAudit(ctx, tenant.ID, "tenant.create", "success", map[string]any{
		"slug":     tenant.Slug,
		"database": tenant.DatabaseName,
	})

	return tenant, nil
}

// GetByID loads a tenant by its opaque identifier.
func (r *Registry) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	return r.getBy(ctx, "id = ?", id)
}

// GetBySlug loads a tenant by its URL-safe slug.
func (r *Registry) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return r.getBy(ctx, "slug = ?", strings.TrimSpace(slug))
}

func (r *Registry) getBy(ctx context.Context, query string, arg string) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenant models.Tenant
	err := r.db.WithContext(ctx).First(&tenant, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("tenant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("tenant registry: load tenant: %w", err)
	}
	return &tenant, nil
}

// List returns tenants ordered by creation date. Deleted tenants are
// included; callers filter on status when they need live tenants only.
func (r *Registry) List(ctx context.Context) ([]models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenants []models.Tenant
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("tenant registry: list tenants: %w", err)
	}
	return tenants, nil
}

// ListByStatus returns tenants in the given lifecycle status.
func (r *Registry) ListByStatus(ctx context.Context, status models.TenantStatus) ([]models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenants []models.Tenant
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("tenant registry: list tenants by status: %w", err)
	}
	return tenants, nil
}

// UpdateStatus transitions a tenant's lifecycle status.
func (r *Registry) UpdateStatus(ctx context.Context, id string, status models.TenantStatus) error {
	ctx = ensureContext(ctx)

	if !status.Valid() {
		return apperrors.NewValidation(fmt.Sprintf("invalid tenant status %q", status))
	}

	result := r.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("tenant registry: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound.WithMessage("tenant not found")
	}

	r.recordAudit(ctx, id, "tenant.status", "success", map[string]any{"status": string(status)})
	return nil
}

// Update modifies tenant metadata and configuration maps.
func (r *Registry) Update(ctx context.Context, id string, input UpdateTenantInput) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	tenant, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidation("name must not be empty")
		}
		updates["name"] = name
	}
	if input.Settings != nil {
		encoded, err := marshalJSONMap(input.Settings)
		if err != nil {
			return nil, fmt.Errorf("tenant registry: marshal settings: %w", err)
		}
		updates["settings"] = encoded
	}
	if input.Features != nil {
		encoded, err := marshalJSONMap(input.Features)
		if err != nil {
			return nil, fmt.Errorf("tenant registry: marshal features: %w", err)
		}
		updates["features"] = encoded
	}

	if len(updates) == 0 {
		return tenant, nil
	}

	if err := r.db.WithContext(ctx).Model(tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("tenant registry: update tenant: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Delete retires a tenant. The catalog row is kept and the isolated database
// is not dropped; downstream access is cut off by the status gate.
func (r *Registry) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	if err := r.UpdateStatus(ctx, id, models.TenantStatusDeleted); err != nil {
		return err
	}

	r.recordAudit(ctx, id, "tenant.delete", "success", nil)
	return nil
}

func (r *Registry) recordAudit(ctx context.Context, tenantID, action, result string, metadata map[string]any) {
	if r.audit == nil {
		return
	}
	_ = r.audit.Log(ctx, services.AuditEntry{
		TenantID: &tenantID,
		Action:   action,
		Resource: tenantID,
		Result:   result,
		Metadata: metadata,
	})
}

func marshalJSONMap(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
