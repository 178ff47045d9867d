package tenant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu   sync.Mutex
	jobs []Job
	err  error
	done chan struct{}
}

func newRecordingRunner(expected int) *recordingRunner {
	return &recordingRunner{done: make(chan struct{}, expected)}
}

func (r *recordingRunner) Provision(_ context.Context, tenantID, databaseName string) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, Job{TenantID: tenantID, DatabaseName: databaseName})
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.err
}

func (r *recordingRunner) waitFor(t *testing.T, n int) []Job {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for job %d", i+1)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.jobs...)
}

func TestWorkerRunsEnqueuedJobs(t *testing.T) {
	runner := newRecordingRunner(2)
	worker, err := NewWorker(runner, 8)
	require.NoError(t, err)

	worker.Start(context.Background())
	t.Cleanup(worker.Stop)

	require.NoError(t, worker.Enqueue(Job{TenantID: "t1", DatabaseName: "cms_tenant_one"}))
	require.NoError(t, worker.Enqueue(Job{TenantID: "t2", DatabaseName: "cms_tenant_two"}))

	jobs := runner.waitFor(t, 2)
	require.Len(t, jobs, 2)
	require.Equal(t, "t1", jobs[0].TenantID)
	require.Equal(t, "t2", jobs[1].TenantID)
}

func TestWorkerEnqueueDoesNotBlockWhenFull(t *testing.T) {
	runner := newRecordingRunner(0)
	worker, err := NewWorker(runner, 1)
	require.NoError(t, err)
	// Not started: the queue cannot drain.

	require.NoError(t, worker.Enqueue(Job{TenantID: "t1", DatabaseName: "cms_tenant_one"}))
	require.ErrorIs(t, worker.Enqueue(Job{TenantID: "t2", DatabaseName: "cms_tenant_two"}), ErrQueueFull)
}

func TestWorkerSurvivesProvisionFailure(t *testing.T) {
	runner := newRecordingRunner(2)
	runner.err = errors.New("pipeline blew up")

	worker, err := NewWorker(runner, 8)
	require.NoError(t, err)

	worker.Start(context.Background())
	t.Cleanup(worker.Stop)

	require.NoError(t, worker.Enqueue(Job{TenantID: "t1", DatabaseName: "cms_tenant_one"}))
	require.NoError(t, worker.Enqueue(Job{TenantID: "t2", DatabaseName: "cms_tenant_two"}))

	// The failure of t1 must not stop t2 from running.
	jobs := runner.waitFor(t, 2)
	require.Len(t, jobs, 2)
}

func TestWorkerStopIsIdempotentAndStartOnce(t *testing.T) {
	runner := newRecordingRunner(1)
	worker, err := NewWorker(runner, 4)
	require.NoError(t, err)

	worker.Start(context.Background())
	worker.Start(context.Background()) // second call is a no-op

	require.NoError(t, worker.Enqueue(Job{TenantID: "t1", DatabaseName: "cms_tenant_one"}))
	runner.waitFor(t, 1)

	worker.Stop()
	worker.Stop()
}
