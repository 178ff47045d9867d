package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PermissionChecks counts permission evaluations and their outcome (allowed|denied|error).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidecms_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"permission", "result"},
	)

	// TenantConnections counts scoped tenant database connections by outcome (opened|open_error).
	TenantConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidecms_tenant_connections_total",
			Help: "Total number of scoped tenant database connections",
		},
		[]string{"result"},
	)

	// ProvisioningRuns counts provisioning pipeline executions by outcome (activated|suspended).
	ProvisioningRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidecms_provisioning_runs_total",
			Help: "Total number of tenant provisioning pipeline runs",
		},
		[]string{"result"},
	)

	// ProvisioningQueueDepth tracks jobs waiting for the provisioning worker.
	ProvisioningQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidecms_provisioning_queue_depth",
			Help: "Number of queued provisioning jobs",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tidecms_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
