package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// =============================================================================
// FIFOJobQueue: the shared work queue
// =============================================================================

// FIFOJobQueue holds not-yet-dequeued jobs in insertion order.
// Every access happens under the internal lock; the lock is never held
// across job execution.
type FIFOJobQueue struct {
	mu   sync.Mutex
	jobs []JobItem
}

func NewFIFOJobQueue() *FIFOJobQueue {
	return &FIFOJobQueue{
		jobs: make([]JobItem, 0, defaultQueueCap),
	}
}

func (q *FIFOJobQueue) Push(item JobItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, item)
}

// Pop removes and returns the head job. At most one caller can win a given
// item; callers see ok == false when the queue is empty.
func (q *FIFOJobQueue) Pop() (JobItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return JobItem{}, false
	}

	item := q.jobs[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.jobs[0] = JobItem{}
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *FIFOJobQueue) MaybeCompact() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeCompactLocked()
}

func (q *FIFOJobQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]JobItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]JobItem, n, newCap)
	copy(newSlice, q.jobs)
	q.jobs = newSlice
}

func (q *FIFOJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *FIFOJobQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all jobs from the queue and releases references.
// Returns the number of jobs removed.
func (q *FIFOJobQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.jobs)
	// Create a new slice to release all job references
	q.jobs = make([]JobItem, 0, defaultQueueCap)
	return n
}
