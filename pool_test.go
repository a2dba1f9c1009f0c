package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-worker-pool/core"
)

func newQuietPool(t *testing.T, name string, workers int) *Pool {
	t.Helper()
	pool, err := NewPool(Config{
		Name:    name,
		Workers: workers,
		Logger:  core.NewNoOpLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool(%s, %d) error = %v", name, workers, err)
	}
	return pool
}

func TestPool_Lifecycle(t *testing.T) {
	pool := newQuietPool(t, "test-pool", 2)

	if pool.Name() != "test-pool" {
		t.Errorf("expected name 'test-pool', got %s", pool.Name())
	}

	// Construction leaves the pool warm
	if !pool.IsRunning() {
		t.Error("pool should be running after construction")
	}

	if pool.WorkerCount() != 2 {
		t.Errorf("expected 2 workers, got %d", pool.WorkerCount())
	}

	pool.Stop()

	if pool.IsRunning() {
		t.Error("pool should not be running after Stop()")
	}
}

func TestNewPool_InvalidWorkerCount(t *testing.T) {
	for _, workers := range []int{0, -1, -100} {
		pool, err := New("bad-pool", workers)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("New(%d) error = %v, want ErrInvalidConfiguration", workers, err)
		}
		if pool != nil {
			t.Errorf("New(%d) returned a pool, want nil", workers)
		}
	}
}

func TestPool_DefaultName(t *testing.T) {
	pool, err := New("", 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer pool.Stop()

	if pool.Name() != "pool-3" {
		t.Errorf("default name = %s, want pool-3", pool.Name())
	}
}

func TestPool_JobExecution(t *testing.T) {
	pool := newQuietPool(t, "exec-pool", 4)
	defer pool.Stop()

	var counter int32
	var wg sync.WaitGroup
	jobCount := 10

	wg.Add(jobCount)

	job := func(ctx context.Context, arg any) {
		defer wg.Done()
		atomic.AddInt32(&counter, 1)
		time.Sleep(10 * time.Millisecond) // Simulate work
	}

	for i := 0; i < jobCount; i++ {
		if err := pool.Submit(job, i); err != nil {
			t.Fatalf("Submit() %d error = %v", i, err)
		}
	}

	wg.Wait()

	if val := atomic.LoadInt32(&counter); val != int32(jobCount) {
		t.Errorf("expected %d executed jobs, got %d", jobCount, val)
	}
}

// Every job runs exactly once under concurrent draining: 100 jobs across 3
// workers, no duplicate or dropped dequeues.
func TestPool_ExactlyOnce_ConcurrentDrain(t *testing.T) {
	pool := newQuietPool(t, "drain-pool", 3)
	defer pool.Stop()

	const jobs = 100
	seen := make([]int32, jobs)
	var wg sync.WaitGroup
	wg.Add(jobs)

	for i := 0; i < jobs; i++ {
		if err := pool.Submit(func(ctx context.Context, arg any) {
			defer wg.Done()
			atomic.AddInt32(&seen[arg.(int)], 1)
		}, i); err != nil {
			t.Fatalf("Submit() %d error = %v", i, err)
		}
	}

	wg.Wait()

	for i, n := range seen {
		if n != 1 {
			t.Errorf("job %d executed %d times, want 1", i, n)
		}
	}
}

// Two workers, job A sleeps then records, job B records immediately; both
// must run exactly once, in either order.
func TestPool_TwoWorkers_BothJobsRun(t *testing.T) {
	pool := newQuietPool(t, "ab-pool", 2)
	defer pool.Stop()

	var mu sync.Mutex
	recorded := map[string]int{}
	var wg sync.WaitGroup
	wg.Add(2)

	record := func(name string) {
		mu.Lock()
		recorded[name]++
		mu.Unlock()
		wg.Done()
	}

	pool.SubmitFunc(func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		record("A")
	})
	pool.SubmitFunc(func(ctx context.Context) {
		record("B")
	})

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if recorded["A"] != 1 || recorded["B"] != 1 {
		t.Errorf("recorded = %v, want A and B exactly once each", recorded)
	}
}

// A single worker preserves dequeue order in execution order.
func TestPool_SingleWorker_PreservesOrder(t *testing.T) {
	pool := newQuietPool(t, "seq-pool", 1)
	defer pool.Stop()

	var mu sync.Mutex
	var sequence []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		if err := pool.Submit(func(ctx context.Context, arg any) {
			mu.Lock()
			sequence = append(sequence, arg.(int))
			mu.Unlock()
			wg.Done()
		}, i); err != nil {
			t.Fatalf("Submit() %d error = %v", i, err)
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, got := range sequence {
		if got != i {
			t.Fatalf("sequence = %v, want [0 1 2 3 4]", sequence)
		}
	}
	if len(sequence) != 5 {
		t.Fatalf("len(sequence) = %d, want 5", len(sequence))
	}
}

// A panicking job must not crash its worker or block later jobs.
func TestPool_PanicIsolation(t *testing.T) {
	var failures int32
	pool, err := NewPool(Config{
		Name:    "panic-pool",
		Workers: 1,
		Logger:  core.NewNoOpLogger(),
		FailureHandler: failureHandlerFunc(func(ctx context.Context, poolName string, workerID int, panicValue any, stack []byte) {
			atomic.AddInt32(&failures, 1)
		}),
	})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Stop()

	done := make(chan struct{})

	pool.SubmitFunc(func(ctx context.Context) {
		panic("boom")
	})
	pool.SubmitFunc(func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job after panic never ran; worker died")
	}

	if got := atomic.LoadInt32(&failures); got != 1 {
		t.Errorf("failure handler invoked %d times, want 1", got)
	}

	// Pool stays responsive to further submissions
	if err := pool.SubmitFunc(func(ctx context.Context) {}); err != nil {
		t.Errorf("Submit() after panic error = %v, want nil", err)
	}
}

type failureHandlerFunc func(ctx context.Context, poolName string, workerID int, panicValue any, stack []byte)

func (f failureHandlerFunc) HandleJobFailure(ctx context.Context, poolName string, workerID int, panicValue any, stack []byte) {
	f(ctx, poolName, workerID, panicValue, stack)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := newQuietPool(t, "closed-pool", 2)
	pool.Stop()

	if err := pool.SubmitFunc(func(ctx context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after Stop error = %v, want ErrPoolClosed", err)
	}
	if err := pool.Submit(func(ctx context.Context, arg any) {}, 1); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after Stop error = %v, want ErrPoolClosed", err)
	}
}

func TestPool_StopTwice(t *testing.T) {
	pool := newQuietPool(t, "double-stop", 2)

	pool.Stop()

	// Second call must return promptly without error or hang
	start := time.Now()
	pool.Stop()
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("second Stop() took %v, want prompt return", elapsed)
	}
}

func TestPool_StopUnblocksIdleWorkers(t *testing.T) {
	pool := newQuietPool(t, "idle-pool", 8)

	// All workers are idle, blocked on the availability signal
	start := time.Now()
	pool.Stop()
	if elapsed := time.Since(start); elapsed > pool.gracePeriod {
		t.Errorf("Stop() with idle workers took %v, want under grace period", elapsed)
	}
	pool.Join()
}

// A job that outlives the grace period is abandoned, not waited for, and the
// interruption is reported.
func TestPool_StopInterruptsStuckWorker(t *testing.T) {
	var interrupted int32
	release := make(chan struct{})

	pool, err := NewPool(Config{
		Name:        "stuck-pool",
		Workers:     1,
		GracePeriod: 100 * time.Millisecond,
		Logger:      core.NewNoOpLogger(),
		Metrics:     &interruptCounter{count: &interrupted},
	})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	started := make(chan struct{})
	pool.SubmitFunc(func(ctx context.Context) {
		close(started)
		<-release // Ignores ctx: simulates a stuck job
	})
	<-started

	stopReturned := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopReturned)
	}()

	select {
	case <-stopReturned:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked on a stuck worker past the grace period")
	}

	if got := atomic.LoadInt32(&interrupted); got != 1 {
		t.Errorf("interrupted workers reported = %d, want 1", got)
	}

	close(release) // Let the goroutine finish
	pool.Join()
}

type interruptCounter struct {
	core.NilMetrics
	count *int32
}

func (m *interruptCounter) RecordWorkerInterrupted(poolName string, workerName string) {
	atomic.AddInt32(m.count, 1)
}

// Jobs queued before a graceful stop still run.
func TestPool_StopGraceful_DrainsQueue(t *testing.T) {
	pool := newQuietPool(t, "graceful-pool", 2)

	var executed int32
	for i := 0; i < 20; i++ {
		if err := pool.SubmitFunc(func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&executed, 1)
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	if err := pool.StopGraceful(5 * time.Second); err != nil {
		t.Fatalf("StopGraceful() error = %v", err)
	}

	if got := atomic.LoadInt32(&executed); got != 20 {
		t.Errorf("executed = %d, want all 20 jobs before graceful stop", got)
	}
	if err := pool.SubmitFunc(func(ctx context.Context) {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after StopGraceful error = %v, want ErrPoolClosed", err)
	}
}

// A prompt Stop discards queued jobs and the queued count reflects that.
func TestPool_StopResetsQueuedCount(t *testing.T) {
	pool := newQuietPool(t, "discard-pool", 1)

	started := make(chan struct{})
	pool.SubmitFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started

	// Back up jobs behind the blocked worker
	for i := 0; i < 3; i++ {
		if err := pool.SubmitFunc(func(ctx context.Context) {}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	pool.Stop()

	if got := pool.QueuedJobCount(); got != 0 {
		t.Errorf("QueuedJobCount() after Stop = %d, want 0", got)
	}
	if stats := pool.Stats(); stats.Queued != 0 {
		t.Errorf("Stats().Queued after Stop = %d, want 0", stats.Queued)
	}
}

func TestPool_SubmitAfter(t *testing.T) {
	pool := newQuietPool(t, "delay-pool", 1)
	defer pool.Stop()

	done := make(chan struct{})
	start := time.Now()

	if err := pool.SubmitAfter(func(ctx context.Context, arg any) {
		close(done)
	}, nil, 30*time.Millisecond); err != nil {
		t.Fatalf("SubmitAfter() error = %v", err)
	}

	select {
	case <-done:
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("delayed job ran after %v, want >= ~30ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delayed job never ran")
	}
}

func TestPool_Stats(t *testing.T) {
	pool, err := NewPool(Config{
		Name:     "stats-pool",
		Workers:  3,
		Priority: PriorityHigh,
		Logger:   core.NewNoOpLogger(),
	})
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Stop()

	stats := pool.Stats()
	if stats.Name != "stats-pool" {
		t.Errorf("Stats().Name = %s, want stats-pool", stats.Name)
	}
	if stats.Workers != 3 {
		t.Errorf("Stats().Workers = %d, want 3", stats.Workers)
	}
	if stats.Priority != PriorityHigh {
		t.Errorf("Stats().Priority = %v, want high", stats.Priority)
	}
	if !stats.Running {
		t.Error("Stats().Running = false, want true")
	}
}

func TestPool_ActiveAndQueuedCounts(t *testing.T) {
	pool := newQuietPool(t, "metrics-pool", 1) // Single worker to force queuing
	defer pool.Stop()

	// 1. Block the worker
	blockCh := make(chan struct{})
	bgDone := make(chan struct{})

	pool.SubmitFunc(func(ctx context.Context) {
		<-blockCh
		bgDone <- struct{}{}
	})

	// Wait a bit for the worker to pick it up
	time.Sleep(50 * time.Millisecond)

	if active := pool.ActiveJobCount(); active != 1 {
		t.Errorf("expected 1 active job, got %d", active)
	}

	// 2. Queue more jobs
	pool.SubmitFunc(func(ctx context.Context) {})
	pool.SubmitFunc(func(ctx context.Context) {})

	// Wait for queue update
	time.Sleep(10 * time.Millisecond)

	if queued := pool.QueuedJobCount(); queued != 2 {
		t.Errorf("expected 2 queued jobs, got %d", queued)
	}

	// 3. Unblock
	close(blockCh)
	<-bgDone

	// Wait for drain
	time.Sleep(100 * time.Millisecond)

	if active := pool.ActiveJobCount(); active != 0 {
		t.Errorf("expected 0 active jobs, got %d", active)
	}
	if queued := pool.QueuedJobCount(); queued != 0 {
		t.Errorf("expected 0 queued jobs, got %d", queued)
	}
}

func TestGlobalPool(t *testing.T) {
	if err := InitGlobalPool(2); err != nil {
		t.Fatalf("InitGlobalPool() error = %v", err)
	}
	defer ShutdownGlobalPool()

	// Second init is a no-op
	if err := InitGlobalPool(8); err != nil {
		t.Fatalf("second InitGlobalPool() error = %v", err)
	}
	if got := GetGlobalPool().WorkerCount(); got != 2 {
		t.Errorf("global pool workers = %d, want 2 (first init wins)", got)
	}

	done := make(chan struct{})
	if err := GetGlobalPool().SubmitFunc(func(ctx context.Context) {
		close(done)
	}); err != nil {
		t.Fatalf("SubmitFunc() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("global pool never ran the job")
	}

	ran := make(chan struct{})
	if err := SubmitGlobal(func(ctx context.Context, arg any) {
		if arg == "payload" {
			close(ran)
		}
	}, "payload"); err != nil {
		t.Fatalf("SubmitGlobal() error = %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitGlobal job never ran")
	}
}
