package tenant

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tidecms/tidecms/internal/models"
	"github.com/tidecms/tidecms/pkg/logger"
)

// Sweeper is the separate retry job for provisioning: on a schedule it
// re-enqueues suspended tenants so a transient failure does not strand them.
// It is opt-in — operators who suspend tenants deliberately leave it
// disabled and re-trigger provisioning by hand.
type Sweeper struct {
	registry *Registry
	worker   *Worker
	cron     *cron.Cron
	schedule string
	log      *zap.Logger
}

// SweeperOption customises the Sweeper.
type SweeperOption func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) SweeperOption {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// NewSweeper constructs a Sweeper with the given cron schedule specification.
func NewSweeper(registry *Registry, worker *Worker, schedule string, opts ...SweeperOption) (*Sweeper, error) {
	if registry == nil {
		return nil, errors.New("tenant sweeper: registry is required")
	}
	if worker == nil {
		return nil, errors.New("tenant sweeper: worker is required")
	}
	if schedule == "" {
		return nil, errors.New("tenant sweeper: schedule is required")
	}

	s := &Sweeper{
		registry: registry,
		worker:   worker,
		schedule: schedule,
		log:      logger.WithModule("provisioning-sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New()
	}
	return s, nil
}

// Start registers the sweep with the cron scheduler and starts it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.log.Warn("sweep finished with errors", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep re-enqueues every suspended tenant for provisioning. Per-tenant
// enqueue failures are aggregated, not short-circuited.
func (s *Sweeper) Sweep(ctx context.Context) error {
	tenants, err := s.registry.ListByStatus(ctx, models.TenantStatusSuspended)
	if err != nil {
		return err
	}

	var errs error
	for _, tenant := range tenants {
		if err := s.worker.Enqueue(Job{TenantID: tenant.ID, DatabaseName: tenant.DatabaseName}); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		s.log.Info("re-enqueued suspended tenant",
			zap.String("tenant_id", tenant.ID),
			zap.String("database", tenant.DatabaseName))
	}
	return errs
}
