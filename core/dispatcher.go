package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolClosed is returned from submission once shutdown has begun.
// Callers must treat it as a permanent rejection, not retryable.
var ErrPoolClosed = errors.New("worker pool is closed")

const rejectReasonShutdown = "shutting down"

// Dispatcher owns the shared work queue and the availability signal that
// wakes idle workers. Producers call Post, workers call GetWork.
//
// The signal channel is buffered: a send either wakes a blocked worker or
// leaves a pending token for the next one, so a Post racing with a worker
// about to sleep can never be missed.
type Dispatcher struct {
	name        string
	queue       *FIFOJobQueue
	signal      chan struct{}
	workerCount int

	delay *DelayScheduler

	metricQueued int32 // Waiting in the queue
	metricActive int32 // Executing in a worker

	// Collaborators
	logger             Logger
	failureHandler     FailureHandler
	metrics            Metrics
	rejectedJobHandler RejectedJobHandler

	// Lifecycle. postMu serializes Post against Shutdown so that no enqueue
	// can succeed once the shuttingDown flag is set.
	postMu       sync.Mutex
	shuttingDown int32 // atomic flag, monotonic
}

// NewDispatcher creates a dispatcher for a pool with the given worker count.
func NewDispatcher(name string, workerCount int, config *DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		name:        name,
		queue:       NewFIFOJobQueue(),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
	}
	d.delay = NewDelayScheduler(func(item JobItem) {
		// Expired jobs re-enter through the normal submission path.
		// Post rejects them if shutdown started in the meantime.
		_ = d.Post(item)
	})

	// Apply config
	if config != nil {
		d.logger = config.Logger
		d.failureHandler = config.FailureHandler
		d.metrics = config.Metrics
		d.rejectedJobHandler = config.RejectedJobHandler
	}

	// Use defaults if not provided
	if d.logger == nil {
		d.logger = NewDefaultLogger()
	}
	if d.failureHandler == nil {
		d.failureHandler = &DefaultFailureHandler{}
	}
	if d.metrics == nil {
		d.metrics = &NilMetrics{}
	}
	if d.rejectedJobHandler == nil {
		d.rejectedJobHandler = &DefaultRejectedJobHandler{}
	}

	return d
}

// Post appends a job to the tail of the queue and signals availability.
// Returns ErrPoolClosed once shutdown has begun: the flag is checked both
// before taking the dispatch lock (fast-path rejection) and again under it,
// closing the race against a concurrent Shutdown.
func (d *Dispatcher) Post(item JobItem) error {
	if atomic.LoadInt32(&d.shuttingDown) == 1 {
		d.reject(rejectReasonShutdown)
		return ErrPoolClosed
	}

	d.postMu.Lock()
	if atomic.LoadInt32(&d.shuttingDown) == 1 {
		d.postMu.Unlock()
		d.reject(rejectReasonShutdown)
		return ErrPoolClosed
	}
	d.queue.Push(item)
	depth := int(atomic.AddInt32(&d.metricQueued, 1)) // Metric++
	d.postMu.Unlock()

	d.metrics.RecordQueueDepth(d.name, depth)

	select {
	case d.signal <- struct{}{}:
	default:
		// Signal channel full, but the job is already queued; the next
		// worker to drain will re-check the queue anyway.
	}
	return nil
}

// PostDelayed hands a job to the delay scheduler; it re-enters via Post
// once the delay expires.
func (d *Dispatcher) PostDelayed(item JobItem, delay time.Duration) error {
	if atomic.LoadInt32(&d.shuttingDown) == 1 {
		d.reject(rejectReasonShutdown)
		return ErrPoolClosed
	}
	d.delay.Add(item, delay)
	return nil
}

// GetWork blocks until a job is available or stopCh closes (Called by Worker).
// ok == false means the pool is shutting down and the worker must exit.
func (d *Dispatcher) GetWork(stopCh <-chan struct{}) (JobItem, bool) {
	for {
		// Try to pop one job
		if item, ok := d.queue.Pop(); ok {
			depth := int(atomic.AddInt32(&d.metricQueued, -1)) // Metric-- (Left Queue)
			d.metrics.RecordQueueDepth(d.name, depth)
			if !d.queue.IsEmpty() {
				// Re-signal so an idle sibling continues draining the
				// backlog; one submission's signal fans out this way.
				select {
				case d.signal <- struct{}{}:
				default:
				}
			}
			return item, true
		}

		// Empty queue: wait for the availability signal. Multiple workers
		// may race to drain after a single signal; only the one that finds
		// a non-empty queue proceeds, the rest loop back here.
		select {
		case <-d.signal:
			continue
		case <-stopCh:
			return JobItem{}, false
		}
	}
}

// Shutdown stops accepting new jobs and discards the ones still queued.
// Idempotent; a second call is a no-op.
func (d *Dispatcher) Shutdown() {
	// 1. Mark as shutting down under the dispatch lock so no concurrent
	//    Post can enqueue after this point
	d.postMu.Lock()
	atomic.StoreInt32(&d.shuttingDown, 1)
	d.postMu.Unlock()

	// 2. Stop the delay scheduler (no more jobs generated)
	d.delay.Stop()

	// 3. Clear the queue to release all job references, keeping the queued
	//    counter exact: discarded jobs decrement here, popped jobs decrement
	//    in GetWork
	if n := d.queue.Clear(); n > 0 {
		atomic.AddInt32(&d.metricQueued, -int32(n))
	}
	d.metrics.RecordQueueDepth(d.name, d.QueuedJobCount())
}

// ShutdownGraceful waits for all queued and active jobs to complete
// Returns error if timeout is exceeded before jobs complete
func (d *Dispatcher) ShutdownGraceful(timeout time.Duration) error {
	// 1. Mark as shutting down to stop accepting new jobs
	d.postMu.Lock()
	atomic.StoreInt32(&d.shuttingDown, 1)
	d.postMu.Unlock()

	// 2. Stop the delay scheduler (no more jobs generated)
	d.delay.Stop()

	// 3. Wait for the queue to drain and active jobs to complete
	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			// Timeout exceeded, force clear the remaining queue
			if n := d.queue.Clear(); n > 0 {
				atomic.AddInt32(&d.metricQueued, -int32(n))
			}
			d.metrics.RecordQueueDepth(d.name, d.QueuedJobCount())
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			// Check if all work is done
			if d.QueuedJobCount() == 0 && d.ActiveJobCount() == 0 {
				return nil
			}
		}
	}
}

func (d *Dispatcher) reject(reason string) {
	d.rejectedJobHandler.HandleRejectedJob(d.name, reason)
	d.metrics.RecordJobRejected(d.name, reason)
}

// Metrics
func (d *Dispatcher) WorkerCount() int     { return d.workerCount }
func (d *Dispatcher) QueuedJobCount() int  { return int(atomic.LoadInt32(&d.metricQueued)) }
func (d *Dispatcher) ActiveJobCount() int  { return int(atomic.LoadInt32(&d.metricActive)) }
func (d *Dispatcher) DelayedJobCount() int { return d.delay.JobCount() }

func (d *Dispatcher) OnJobStart() {
	atomic.AddInt32(&d.metricActive, 1)
}

func (d *Dispatcher) OnJobEnd() {
	atomic.AddInt32(&d.metricActive, -1)
}

// Logger returns the trace sink for this dispatcher
func (d *Dispatcher) Logger() Logger {
	return d.logger
}

// FailureHandler returns the failure handler for this dispatcher
func (d *Dispatcher) FailureHandler() FailureHandler {
	return d.failureHandler
}

// Metrics returns the metrics collector for this dispatcher
func (d *Dispatcher) Metrics() Metrics {
	return d.metrics
}
