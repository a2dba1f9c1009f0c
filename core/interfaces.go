package core

import (
	"context"
	"log"
	"time"
)

// =============================================================================
// FailureHandler: Interface for handling job failures
// =============================================================================

// FailureHandler is called when a job panics during execution.
// This allows custom failure handling, logging, and recovery strategies.
// A job failure never terminates the worker that ran it and never propagates
// back to the submitter.
//
// Implementations should be thread-safe as they may be called concurrently.
type FailureHandler interface {
	// HandleJobFailure is called when a job panics.
	//
	// Parameters:
	// - ctx: The context from the failed job
	// - poolName: The name of the pool where the failure occurred
	// - workerID: The index of the worker that ran the job
	// - panicValue: The panic value recovered from the job
	// - stackTrace: The stack trace at the time of panic
	HandleJobFailure(ctx context.Context, poolName string, workerID int, panicValue any, stackTrace []byte)
}

// DefaultFailureHandler provides a basic failure handler that logs via the
// standard log package.
type DefaultFailureHandler struct{}

// HandleJobFailure logs the failure information.
func (h *DefaultFailureHandler) HandleJobFailure(ctx context.Context, poolName string, workerID int, panicValue any, stackTrace []byte) {
	log.Printf("[Worker %d @ %s] Job failed: %v\nStack trace:\n%s",
		workerID, poolName, panicValue, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// All methods are optional; implementations should handle nil receivers gracefully.
// Methods should be non-blocking and fast to avoid impacting job execution performance.
type Metrics interface {
	// RecordJobDuration records how long a job took to execute.
	RecordJobDuration(poolName string, duration time.Duration)

	// RecordJobFailure records that a job panicked during execution.
	RecordJobFailure(poolName string, panicValue any)

	// RecordQueueDepth records the current queue depth.
	// Called after every enqueue, dequeue and shutdown clear.
	RecordQueueDepth(poolName string, depth int)

	// RecordJobRejected records that a job was rejected (e.g., during shutdown).
	RecordJobRejected(poolName string, reason string)

	// RecordWorkerInterrupted records that a worker failed to exit within the
	// shutdown grace period and was abandoned mid-job.
	RecordWorkerInterrupted(poolName string, workerName string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordJobDuration is a no-op.
func (m *NilMetrics) RecordJobDuration(poolName string, duration time.Duration) {
}

// RecordJobFailure is a no-op.
func (m *NilMetrics) RecordJobFailure(poolName string, panicValue any) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int) {
}

// RecordJobRejected is a no-op.
func (m *NilMetrics) RecordJobRejected(poolName string, reason string) {
}

// RecordWorkerInterrupted is a no-op.
func (m *NilMetrics) RecordWorkerInterrupted(poolName string, workerName string) {
}

// =============================================================================
// RejectedJobHandler: Interface for handling rejected jobs
// =============================================================================

// RejectedJobHandler is called when a job is rejected by the dispatcher.
// This happens when the pool is shutting down at submission time.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedJobHandler interface {
	// HandleRejectedJob is called when a job is rejected.
	//
	// Parameters:
	// - poolName: The name of the pool
	// - reason: Why the job was rejected (e.g., "shutdown")
	HandleRejectedJob(poolName string, reason string)
}

// DefaultRejectedJobHandler provides a basic handler that logs rejected jobs.
type DefaultRejectedJobHandler struct{}

// HandleRejectedJob logs the rejected job.
func (h *DefaultRejectedJobHandler) HandleRejectedJob(poolName string, reason string) {
	log.Printf("[Pool %s] Job rejected: %s", poolName, reason)
}

// =============================================================================
// DispatcherConfig: Configuration for Dispatcher
// =============================================================================

// DispatcherConfig holds the collaborators a dispatcher reports into.
// All of them are optional; if not provided, default implementations will be used.
type DispatcherConfig struct {
	// Logger receives leveled trace events. Defaults to DefaultLogger.
	Logger Logger

	// FailureHandler is called when a job panics. Defaults to DefaultFailureHandler.
	FailureHandler FailureHandler

	// Metrics is called to record execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedJobHandler is called when a job is rejected. Defaults to DefaultRejectedJobHandler.
	RejectedJobHandler RejectedJobHandler
}

// DefaultDispatcherConfig returns a config with default collaborators.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		Logger:             NewDefaultLogger(),
		FailureHandler:     &DefaultFailureHandler{},
		Metrics:            &NilMetrics{},
		RejectedJobHandler: &DefaultRejectedJobHandler{},
	}
}
