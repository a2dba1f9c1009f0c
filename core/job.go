package core

import (
	"context"
	"fmt"
	"strings"
)

// Job is the unit of work: a callable plus the argument captured at
// submission time. Jobs are fire-and-forget; no result is retained.
type Job func(ctx context.Context, arg any)

// JobItem pairs a Job with its captured argument.
// Immutable once enqueued; owned by the queue until a worker pops it.
type JobItem struct {
	Job Job
	Arg any
}

// =============================================================================
// Priority: scheduling hint carried by a pool's workers
// =============================================================================

// Priority is a pool-level scheduling hint. Goroutines expose no scheduler
// priority, so the hint only flows into worker log fields and stats.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority maps a priority name (as used in config files) to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}
