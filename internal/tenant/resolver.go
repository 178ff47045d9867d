package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/tidecms/tidecms/internal/models"
	apperrors "github.com/tidecms/tidecms/pkg/errors"
)

// Principal describes the authenticated caller as presented by the transport
// layer. The platform super-user bypasses tenant gating entirely.
type Principal struct {
	UserID          string
	IsPlatformAdmin bool
}

// Request carries the tenant identification material extracted from the
// incoming request: a direct tenant id, or a slug requiring a registry
// lookup.
type Request struct {
	Principal  Principal
	TenantID   string
	TenantSlug string
}

// Resolved is the outcome published to downstream collaborators.
type Resolved struct {
	TenantID     string
	DatabaseName string

	// Bypass marks platform super-user resolution. TenantID and
	// DatabaseName may still be attached for cross-tenant inspection.
	Bypass bool
}

// Resolver determines which isolated database a request operates against.
// It consults only the platform catalog and never opens tenant connections.
type Resolver struct {
	registry *Registry
}

// NewResolver constructs a Resolver backed by the tenant registry.
func NewResolver(registry *Registry) (*Resolver, error) {
	if registry == nil {
		return nil, errors.New("tenant resolver: registry is required")
	}
	return &Resolver{registry: registry}, nil
}

// Resolve applies the tenant access rules: super-users resolve in bypass mode
// with an optional tenant attachment; everyone else must identify an active
// tenant. Status gates map onto the unauthorized taxonomy so callers can
// distinguish a permanently retired tenant from one that is merely not ready.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	ctx = ensureContext(ctx)

	id := strings.TrimSpace(req.TenantID)
	slug := strings.TrimSpace(req.TenantSlug)

	if req.Principal.IsPlatformAdmin {
		resolved := &Resolved{Bypass: true}
		if id == "" && slug == "" {
			return resolved, nil
		}

		// An explicitly named tenant must exist even for admins, but its
		// status never gates the super-user.
		tenant, err := r.lookup(ctx, id, slug)
		if err != nil {
			return nil, err
		}
		resolved.TenantID = tenant.ID
		resolved.DatabaseName = tenant.DatabaseName
		return resolved, nil
	}

	if id == "" && slug == "" {
		return nil, apperrors.NewValidation("tenant identifier required")
	}

	tenant, err := r.lookup(ctx, id, slug)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("tenant not found")
		}
		return nil, err
	}

	switch tenant.Status {
	case models.TenantStatusSuspended:
		return nil, apperrors.NewUnauthorized("tenant is suspended")
	case models.TenantStatusDeleted:
		return nil, apperrors.NewUnauthorized("tenant is no longer accessible")
	case models.TenantStatusProvisioning:
		return nil, apperrors.NewUnauthorized("tenant is still provisioning, retry later")
	case models.TenantStatusActive:
		return &Resolved{TenantID: tenant.ID, DatabaseName: tenant.DatabaseName}, nil
	default:
		return nil, apperrors.NewUnauthorized("tenant is not accessible")
	}
}

func (r *Resolver) lookup(ctx context.Context, id, slug string) (*models.Tenant, error) {
	if id != "" {
		return r.registry.GetByID(ctx, id)
	}
	return r.registry.GetBySlug(ctx, slug)
}
