package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Swind/go-worker-pool/core"
)

// ErrInvalidConfiguration is returned from construction when the
// configuration cannot produce a usable pool (e.g. a worker count below 1).
var ErrInvalidConfiguration = errors.New("invalid worker pool configuration")

// DefaultGracePeriod is how long Stop waits for each worker to exit before
// abandoning it mid-job.
const DefaultGracePeriod = time.Second

// Config describes a pool. All fields are immutable after construction.
type Config struct {
	// Name identifies the pool in logs and metrics. Defaults to "pool-<workers>".
	Name string

	// Workers is the fixed number of worker goroutines. Must be >= 1.
	Workers int

	// Priority is a scheduling hint attached to the pool's workers.
	// Goroutines carry no scheduler priority, so it is observational only.
	Priority core.Priority

	// GracePeriod bounds the per-worker wait during Stop. Defaults to
	// DefaultGracePeriod.
	GracePeriod time.Duration

	// Collaborators. Defaults are applied the same way the dispatcher
	// defaults them; see core.DefaultDispatcherConfig.
	Logger             core.Logger
	Metrics            core.Metrics
	FailureHandler     core.FailureHandler
	RejectedJobHandler core.RejectedJobHandler
}

// Pool manages a fixed set of worker goroutines draining a shared FIFO
// queue. Workers are created and started at construction and live until
// Stop; the pool is always warm.
type Pool struct {
	name        string
	workers     int
	priority    core.Priority
	gracePeriod time.Duration

	dispatcher *core.Dispatcher
	logger     core.Logger

	wg         sync.WaitGroup
	workerDone []chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
	runningMu  sync.RWMutex
}

// New creates and starts a pool with default collaborators.
func New(name string, workers int) (*Pool, error) {
	return NewPool(Config{Name: name, Workers: workers})
}

// NewPool creates a pool from cfg and starts all of its workers before
// returning. Fails with ErrInvalidConfiguration when cfg.Workers < 1; no
// worker is started in that case.
func NewPool(cfg Config) (*Pool, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", ErrInvalidConfiguration, cfg.Workers)
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("pool-%d", cfg.Workers)
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	p := &Pool{
		name:        name,
		workers:     cfg.Workers,
		priority:    cfg.Priority,
		gracePeriod: grace,
		logger:      logger,
		dispatcher: core.NewDispatcher(name, cfg.Workers, &core.DispatcherConfig{
			Logger:             logger,
			Metrics:            cfg.Metrics,
			FailureHandler:     cfg.FailureHandler,
			RejectedJobHandler: cfg.RejectedJobHandler,
		}),
	}
	p.start(context.Background())
	return p, nil
}

// start launches all worker goroutines. Construction-only; the worker count
// never changes afterwards.
func (p *Pool) start(ctx context.Context) {
	p.runningMu.Lock()
	defer p.runningMu.Unlock()

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.workerDone = make([]chan struct{}, p.workers)

	for i := 0; i < p.workers; i++ {
		done := make(chan struct{})
		p.workerDone[i] = done
		p.wg.Add(1)
		go p.workerLoop(i, done, p.ctx)
	}
}

// Submit appends (job, arg) to the work queue and wakes an idle worker.
// Returns ErrPoolClosed once Stop has begun; the job never runs in that case.
func (p *Pool) Submit(job core.Job, arg any) error {
	return p.dispatcher.Post(core.JobItem{Job: job, Arg: arg})
}

// SubmitFunc is the zero-argument convenience form of Submit.
func (p *Pool) SubmitFunc(fn func(ctx context.Context)) error {
	return p.Submit(func(ctx context.Context, _ any) { fn(ctx) }, nil)
}

// SubmitAfter schedules (job, arg) to enter the queue after delay.
func (p *Pool) SubmitAfter(job core.Job, arg any, delay time.Duration) error {
	return p.dispatcher.PostDelayed(core.JobItem{Job: job, Arg: arg}, delay)
}

// Stop shuts the pool down: no further Submit succeeds, still-queued jobs
// are discarded, every blocked worker is woken, and each worker gets up to
// the grace period to exit. Workers still running a job past the deadline
// are abandoned with a warning; cancellation is cooperative, so a job that
// ignores its context keeps its goroutine alive past Stop (see package doc).
// In-flight jobs are never aborted before the deadline.
//
// Idempotent: a second call returns promptly without re-interrupting
// already-exited workers.
func (p *Pool) Stop() {
	// Always shutdown the dispatcher to stop submissions and release queued
	// job references, even on repeated calls
	p.dispatcher.Shutdown()

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return
	}
	p.running = false
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.awaitWorkers()
}

// StopGraceful first waits up to timeout for the queue to drain and active
// jobs to finish, then stops the pool. Jobs queued before the call still run
// unless the timeout expires. Returns an error on timeout; the pool is
// stopped either way.
func (p *Pool) StopGraceful(timeout time.Duration) error {
	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return nil
	}
	p.runningMu.Unlock()

	err := p.dispatcher.ShutdownGraceful(timeout)

	p.runningMu.Lock()
	if !p.running {
		p.runningMu.Unlock()
		return err
	}
	p.running = false
	p.runningMu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.awaitWorkers()
	return err
}

// awaitWorkers waits for each worker to exit, sharing a single grace-period
// deadline across all of them. Stragglers are reported, not killed.
func (p *Pool) awaitWorkers() {
	deadline := time.NewTimer(p.gracePeriod)
	defer deadline.Stop()

	for i, done := range p.workerDone {
		select {
		case <-done:
		case <-deadline.C:
			p.reportStragglers(i)
			return
		}
	}
}

// reportStragglers logs every worker still alive once the grace period has
// been exhausted.
func (p *Pool) reportStragglers(from int) {
	for i := from; i < len(p.workerDone); i++ {
		select {
		case <-p.workerDone[i]:
			continue
		default:
		}
		name := p.workerName(i)
		p.logger.Warn("worker interrupted on shutdown",
			core.F("worker", name),
			core.F("grace_period", p.gracePeriod))
		p.dispatcher.Metrics().RecordWorkerInterrupted(p.name, name)
	}
}

// workerLoop is the main loop for each worker
func (p *Pool) workerLoop(id int, done chan struct{}, ctx context.Context) {
	defer p.wg.Done()
	defer close(done)

	name := p.workerName(id)
	p.logger.Debug("worker started",
		core.F("worker", name),
		core.F("priority", p.priority))

	stopCh := ctx.Done()
	for {
		// Pull one job from the dispatcher
		item, ok := p.dispatcher.GetWork(stopCh)
		if !ok {
			// Pool is shutting down
			p.logger.Debug("worker completed", core.F("worker", name))
			return
		}

		p.dispatcher.OnJobStart()
		p.runJob(ctx, name, id, item)
	}
}

// runJob executes one job in a failure-isolating envelope: a panic is caught
// and reported, never propagated to crash the worker.
func (p *Pool) runJob(ctx context.Context, workerName string, id int, item core.JobItem) {
	start := time.Now()
	p.logger.Debug("worker picked up job", core.F("worker", workerName))

	defer func() {
		p.dispatcher.OnJobEnd()
		if r := recover(); r != nil {
			stack := debug.Stack()
			p.dispatcher.FailureHandler().HandleJobFailure(ctx, p.name, id, r, stack)
			p.dispatcher.Metrics().RecordJobFailure(p.name, r)
			p.logger.Error("job failed",
				core.F("worker", workerName),
				core.F("panic", r))
			return
		}
		elapsed := time.Since(start)
		p.dispatcher.Metrics().RecordJobDuration(p.name, elapsed)
		p.logger.Debug("job completed",
			core.F("worker", workerName),
			core.F("elapsed", elapsed))
	}()

	item.Job(ctx, item.Arg)
}

func (p *Pool) workerName(id int) string {
	return fmt.Sprintf("%s-worker-%d", p.name, id)
}

// Name returns the name of the pool
func (p *Pool) Name() string {
	return p.name
}

// IsRunning returns whether the pool is running
func (p *Pool) IsRunning() bool {
	p.runningMu.RLock()
	defer p.runningMu.RUnlock()
	return p.running
}

// Join waits for all worker goroutines to finish. Unlike Stop it is
// unbounded; a stuck job blocks it forever.
func (p *Pool) Join() {
	p.wg.Wait()
}

// WorkerCount returns the number of workers
func (p *Pool) WorkerCount() int {
	return p.workers
}

// Priority returns the pool's scheduling hint.
func (p *Pool) Priority() core.Priority {
	return p.priority
}

func (p *Pool) QueuedJobCount() int {
	return p.dispatcher.QueuedJobCount()
}

func (p *Pool) ActiveJobCount() int {
	return p.dispatcher.ActiveJobCount()
}

func (p *Pool) DelayedJobCount() int {
	return p.dispatcher.DelayedJobCount()
}

// Stats returns a point-in-time snapshot for observability pollers.
func (p *Pool) Stats() core.PoolStats {
	return core.PoolStats{
		Name:     p.name,
		Workers:  p.workers,
		Priority: p.priority,
		Queued:   p.dispatcher.QueuedJobCount(),
		Active:   p.dispatcher.ActiveJobCount(),
		Delayed:  p.dispatcher.DelayedJobCount(),
		Running:  p.IsRunning(),
	}
}

// =============================================================================
// Global Pool Helper (Singleton)
// =============================================================================

var (
	globalPool *Pool
	globalMu   sync.Mutex
)

// InitGlobalPool initializes the global pool with the specified number of
// workers. The pool starts immediately.
func InitGlobalPool(workers int) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		return nil // Already initialized
	}

	pool, err := New("global-pool", workers)
	if err != nil {
		return err
	}
	globalPool = pool
	return nil
}

// GetGlobalPool returns the global pool instance.
// It panics if InitGlobalPool has not been called.
func GetGlobalPool() *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		panic("global pool not initialized. Call InitGlobalPool() first.")
	}
	return globalPool
}

// SubmitGlobal submits a job to the global pool.
// It panics if InitGlobalPool has not been called.
func SubmitGlobal(job core.Job, arg any) error {
	return GetGlobalPool().Submit(job, arg)
}

// ShutdownGlobalPool stops the global pool.
func ShutdownGlobalPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool != nil {
		globalPool.Stop()
		globalPool = nil
	}
}
