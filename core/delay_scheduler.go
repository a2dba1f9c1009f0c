package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DelayedJob represents a job scheduled for the future
type DelayedJob struct {
	RunAt time.Time
	Item  JobItem
	index int // for heap interface
}

// DelayedJobHeap implements heap.Interface
type DelayedJobHeap []*DelayedJob

func (h DelayedJobHeap) Len() int           { return len(h) }
func (h DelayedJobHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }
func (h DelayedJobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *DelayedJobHeap) Push(x any) {
	n := len(*h)
	item := x.(*DelayedJob)
	item.index = n
	*h = append(*h, item)
}

func (h *DelayedJobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *DelayedJobHeap) Peek() *DelayedJob {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayScheduler holds jobs until their delay expires, then hands them to
// the deliver callback (the dispatcher's submission path).
type DelayScheduler struct {
	pq      DelayedJobHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	deliver func(JobItem)
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewDelayScheduler(deliver func(JobItem)) *DelayScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	ds := &DelayScheduler{
		pq:      make(DelayedJobHeap, 0),
		wakeup:  make(chan struct{}, 1),
		deliver: deliver,
		ctx:     ctx,
		cancel:  cancel,
	}
	heap.Init(&ds.pq)
	go ds.loop()
	return ds
}

func (ds *DelayScheduler) Add(item JobItem, delay time.Duration) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	job := &DelayedJob{
		RunAt: time.Now().Add(delay),
		Item:  item,
	}
	heap.Push(&ds.pq, job)

	if job.index == 0 {
		select {
		case ds.wakeup <- struct{}{}:
		default:
		}
	}
}

func (ds *DelayScheduler) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		// Calculate next run time
		nextRun := ds.calculateNextRun()
		if nextRun == 0 {
			// No jobs, wait indefinitely
			nextRun = 1000 * time.Hour
		}

		timer.Reset(nextRun)

		select {
		case <-ds.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// Timer fired, process all expired jobs in one go
			ds.processExpiredJobs()
		case <-ds.wakeup:
			// New job added, need to recalculate
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// calculateNextRun determines how long to wait until the next job
// Returns 0 only when the heap is empty
func (ds *DelayScheduler) calculateNextRun() time.Duration {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	job := ds.pq.Peek()
	if job == nil {
		return 0 // No jobs
	}

	now := time.Now()
	if !job.RunAt.After(now) {
		// Already expired, fire the timer immediately
		return time.Nanosecond
	}
	return job.RunAt.Sub(now)
}

// processExpiredJobs delivers all jobs that have expired
func (ds *DelayScheduler) processExpiredJobs() {
	ds.mu.Lock()

	now := time.Now()
	// Collect all expired jobs to avoid holding lock while delivering
	var expired []*DelayedJob

	for ds.pq.Len() > 0 {
		job := ds.pq.Peek()
		if job.RunAt.After(now) {
			break // No more expired jobs
		}
		// Job has expired
		heap.Pop(&ds.pq)
		expired = append(expired, job)
	}

	ds.mu.Unlock()

	// Deliver expired jobs outside the lock
	for _, job := range expired {
		ds.deliver(job.Item)
	}
}

func (ds *DelayScheduler) Stop() {
	ds.cancel()

	// Clear pq to release all job references
	ds.mu.Lock()
	ds.pq = make(DelayedJobHeap, 0)
	heap.Init(&ds.pq)
	ds.mu.Unlock()
}

func (ds *DelayScheduler) JobCount() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.pq)
}
