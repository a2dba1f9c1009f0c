package workerpool

import "github.com/Swind/go-worker-pool/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the workerpool package for most use cases.

// Job is the unit of work: a callable plus its captured argument
type Job = core.Job

// Priority is the pool-level scheduling hint
type Priority = core.Priority

// Logger is the leveled sink the pool emits trace events into
type Logger = core.Logger

// Field is a key-value pair for structured logging
type Field = core.Field

// Metrics receives execution metrics (durations, failures, rejections)
type Metrics = core.Metrics

// FailureHandler is invoked when a job panics
type FailureHandler = core.FailureHandler

// RejectedJobHandler is invoked when a submission is rejected
type RejectedJobHandler = core.RejectedJobHandler

// PoolStats is a point-in-time observability snapshot
type PoolStats = core.PoolStats

// Priority constants
const (
	PriorityLow    Priority = core.PriorityLow
	PriorityNormal Priority = core.PriorityNormal
	PriorityHigh   Priority = core.PriorityHigh
)

// ErrPoolClosed is returned from Submit once shutdown has begun.
var ErrPoolClosed = core.ErrPoolClosed

// F creates a structured logging field
var F = core.F

// ParsePriority maps a priority name to a Priority
var ParsePriority = core.ParsePriority
