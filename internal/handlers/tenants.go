package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tidecms/tidecms/internal/models"
	"github.com/tidecms/tidecms/internal/tenant"
	appErrors "github.com/tidecms/tidecms/pkg/errors"
	"github.com/tidecms/tidecms/pkg/logger"
	"github.com/tidecms/tidecms/pkg/response"
)

// TenantHandler exposes the tenant registry and provisioning pipeline over
// HTTP.
type TenantHandler struct {
	registry *tenant.Registry
	worker   *tenant.Worker
	log      *zap.Logger
}

// NewTenantHandler wires the handler with the registry and the provisioning
// worker.
func NewTenantHandler(registry *tenant.Registry, worker *tenant.Worker) (*TenantHandler, error) {
	if registry == nil {
		return nil, errors.New("tenant handler: registry is required")
	}
	if worker == nil {
		return nil, errors.New("tenant handler: worker is required")
	}
	return &TenantHandler{
		registry: registry,
		worker:   worker,
		log:      logger.WithModule("handlers.tenants"),
	}, nil
}

type createTenantRequest struct {
	Name     string         `json:"name" validate:"required,min=2,max=128"`
	Slug     string         `json:"slug" validate:"required,min=2,max=64,slug"`
	ParentID *string        `json:"parent_id" validate:"omitempty,uuid"`
	Settings map[string]any `json:"settings"`
	Features map[string]any `json:"features"`
}

type updateTenantRequest struct {
	Name     *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Settings map[string]any `json:"settings"`
	Features map[string]any `json:"features"`
}

type updateTenantStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// POST /api/tenants
//
// Registers the tenant and enqueues provisioning. The response does not wait
// for the pipeline; the tenant stays in provisioning status until the worker
// activates it.
func (h *TenantHandler) Create(c *gin.Context) {
	var body createTenantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.registry.Create(requestContext(c), tenant.CreateTenantInput{
		Name:     body.Name,
		Slug:     body.Slug,
		ParentID: body.ParentID,
		Settings: body.Settings,
		Features: body.Features,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.worker.Enqueue(tenant.Job{TenantID: created.ID, DatabaseName: created.DatabaseName}); err != nil {
		// The tenant record exists; an operator or the sweeper re-drives
		// provisioning once the queue drains.
		h.log.Warn("provisioning enqueue failed",
			zap.String("tenant_id", created.ID),
			zap.Error(err))
	}

	response.Success(c, http.StatusCreated, created)
}

// GET /api/tenants
func (h *TenantHandler) List(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		parsed := models.TenantStatus(status)
		if !parsed.Valid() {
			response.Error(c, appErrors.NewValidation("unknown tenant status"))
			return
		}
		tenants, err := h.registry.ListByStatus(requestContext(c), parsed)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusOK, tenants)
		return
	}

	tenants, err := h.registry.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tenants)
}

// GET /api/tenants/:id
func (h *TenantHandler) Get(c *gin.Context) {
	found, err := h.registry.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, found)
}

// PATCH /api/tenants/:id
func (h *TenantHandler) Update(c *gin.Context) {
	var body updateTenantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	updated, err := h.registry.Update(requestContext(c), c.Param("id"), tenant.UpdateTenantInput{
		Name:     body.Name,
		Settings: body.Settings,
		Features: body.Features,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// PATCH /api/tenants/:id/status
func (h *TenantHandler) UpdateStatus(c *gin.Context) {
	var body updateTenantStatusRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.registry.UpdateStatus(requestContext(c), c.Param("id"), models.TenantStatus(body.Status)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": body.Status})
}

// DELETE /api/tenants/:id
//
// Deletion is a status transition; the isolated database is left in place.
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.registry.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": string(models.TenantStatusDeleted)})
}

// POST /api/tenants/:id/provision
//
// Re-enqueues the provisioning pipeline for a tenant, typically after a
// failed run left it suspended.
func (h *TenantHandler) Provision(c *gin.Context) {
	found, err := h.registry.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.worker.Enqueue(tenant.Job{TenantID: found.ID, DatabaseName: found.DatabaseName}); err != nil {
		response.Error(c, appErrors.Wrap(err, "provisioning queue is full"))
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": string(found.Status)})
}
