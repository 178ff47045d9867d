package tenant

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/tidecms/tidecms/pkg/logger"
	"github.com/tidecms/tidecms/pkg/metrics"
)

// Job identifies one provisioning run.
type Job struct {
	TenantID     string
	DatabaseName string
}

// provisionRunner decouples the worker from the concrete Provisioner.
type provisionRunner interface {
	Provision(ctx context.Context, tenantID, databaseName string) error
}

// Worker consumes provisioning jobs from a bounded queue. Tenant creation
// enqueues and returns immediately; the pipeline outcome is persisted to the
// registry by the provisioner, never reported back to the enqueuer.
type Worker struct {
	runner provisionRunner
	jobs   chan Job
	log    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// ErrQueueFull is returned when the provisioning queue cannot accept a job.
var ErrQueueFull = errors.New("tenant: provisioning queue full")

// NewWorker constructs a Worker with the given queue capacity.
func NewWorker(runner provisionRunner, queueSize int) (*Worker, error) {
	if runner == nil {
		return nil, errors.New("tenant worker: provisioner is required")
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Worker{
		runner: runner,
		jobs:   make(chan Job, queueSize),
		log:    logger.WithModule("provisioning-worker"),
	}, nil
}

// Start launches the consumer goroutine. Calling Start twice is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ensureContext(ctx))
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop cancels the consumer and waits for the in-flight job to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// Enqueue submits a job without blocking the caller. A full queue surfaces
// ErrQueueFull; the tenant stays in provisioning status and can be re-driven
// by the sweeper or an operator.
func (w *Worker) Enqueue(job Job) error {
	select {
	case w.jobs <- job:
		metrics.ProvisioningQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			metrics.ProvisioningQueueDepth.Dec()
			if err := w.runner.Provision(ctx, job.TenantID, job.DatabaseName); err != nil {
				// The pipeline already rolled the tenant back; all that is
				// left here is the operator-facing log line.
				w.log.Error("provisioning job failed",
					zap.String("tenant_id", job.TenantID),
					zap.String("database", job.DatabaseName),
					zap.Error(err))
			}
		}
	}
}
