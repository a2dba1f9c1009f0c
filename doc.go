// Package workerpool provides a fixed-size, long-lived worker pool for Go.
//
// A pool owns a shared FIFO work queue and a pre-started set of worker
// goroutines that drain it. Callers submit a job (a callable plus an
// optional argument) and forget about it; exactly one worker executes each
// job exactly once. The worker count is fixed at construction and the pool
// stays warm until it is explicitly stopped.
//
// # Quick Start
//
// Create a pool and submit work:
//
//	pool, err := workerpool.New("my-pool", 4)
//	if err != nil {
//		// worker count must be >= 1
//	}
//	defer pool.Stop()
//
//	pool.Submit(func(ctx context.Context, arg any) {
//		fmt.Println("processing", arg)
//	}, 42)
//
// Or use the global pool for application-wide sharing:
//
//	workerpool.InitGlobalPool(4)
//	defer workerpool.ShutdownGlobalPool()
//
//	workerpool.GetGlobalPool().SubmitFunc(func(ctx context.Context) {
//		// Your code here
//	})
//
// # Lifecycle
//
// Construction starts every worker before returning. Submit appends to the
// queue under its lock and signals availability; exactly one idle worker
// wakes per signal, and a worker that pops a job from a still-non-empty
// queue re-signals so a sibling keeps draining the backlog. Stop flips the
// pool's running state once, rejects further submissions with ErrPoolClosed,
// wakes every blocked worker, and waits up to a grace period (default one
// second) for each to exit.
//
// Shutdown is not graceful with respect to in-flight jobs: a job already
// executing runs to completion, but jobs still queued when Stop is called
// are discarded. Use StopGraceful to drain the queue first.
//
// # Failure Isolation
//
// A panic inside a job is caught at the worker boundary, reported to the
// pool's FailureHandler, Logger and Metrics, and otherwise swallowed. It
// never crashes the worker and never reaches the submitter.
//
// # Reduced Interruption Guarantee
//
// Go offers no way to kill a goroutine. A worker that is still executing a
// job when the grace period expires is therefore abandoned, not aborted:
// its context is canceled, a warning is emitted through the Logger, and the
// goroutine exits on its own once the job returns. Jobs that should be
// interruptible must observe their context.
//
// # Observability
//
// The pool emits leveled trace events (worker started/completed, job picked
// up with elapsed time, job failed, worker interrupted on shutdown) into a
// core.Logger it does not own, and counters/durations into a core.Metrics
// implementation. See observability/prometheus for a ready-made exporter.
package workerpool
