package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type deliveryRecorder struct {
	mu    sync.Mutex
	items []JobItem
	ch    chan JobItem
}

func newDeliveryRecorder() *deliveryRecorder {
	return &deliveryRecorder{ch: make(chan JobItem, 16)}
}

func (r *deliveryRecorder) deliver(item JobItem) {
	r.mu.Lock()
	r.items = append(r.items, item)
	r.mu.Unlock()
	r.ch <- item
}

func (r *deliveryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// TestDelayScheduler_DeliversAfterDelay verifies basic delayed delivery
// Given: A job added with a 30ms delay
// When: The delay expires
// Then: The deliver callback receives the job
func TestDelayScheduler_DeliversAfterDelay(t *testing.T) {
	rec := newDeliveryRecorder()
	ds := NewDelayScheduler(rec.deliver)
	defer ds.Stop()

	start := time.Now()
	ds.Add(JobItem{Job: func(ctx context.Context, arg any) {}, Arg: "x"}, 30*time.Millisecond)

	select {
	case item := <-rec.ch:
		if item.Arg != "x" {
			t.Errorf("delivered arg = %v, want x", item.Arg)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("delivered after %v, want >= ~30ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never delivered")
	}
}

// TestDelayScheduler_ZeroDelay verifies an already-expired job still fires
// Given: A job added with zero delay
// When: The scheduler loop recalculates
// Then: The job is delivered promptly instead of waiting for another wakeup
func TestDelayScheduler_ZeroDelay(t *testing.T) {
	rec := newDeliveryRecorder()
	ds := NewDelayScheduler(rec.deliver)
	defer ds.Stop()

	ds.Add(JobItem{Job: func(ctx context.Context, arg any) {}, Arg: "now"}, 0)

	select {
	case item := <-rec.ch:
		if item.Arg != "now" {
			t.Errorf("delivered arg = %v, want now", item.Arg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("zero-delay job never delivered")
	}
}

// TestDelayScheduler_EarlierJobReordersTimer verifies a shorter delay added
// later fires first
// Given: A job at 500ms, then a job at 20ms
// When: Timers fire
// Then: The 20ms job is delivered first
func TestDelayScheduler_EarlierJobReordersTimer(t *testing.T) {
	rec := newDeliveryRecorder()
	ds := NewDelayScheduler(rec.deliver)
	defer ds.Stop()

	noop := func(ctx context.Context, arg any) {}
	ds.Add(JobItem{Job: noop, Arg: "slow"}, 500*time.Millisecond)
	ds.Add(JobItem{Job: noop, Arg: "fast"}, 20*time.Millisecond)

	select {
	case item := <-rec.ch:
		if item.Arg != "fast" {
			t.Errorf("first delivery = %v, want fast", item.Arg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery at all")
	}
}

// TestDelayScheduler_StopDropsPending verifies Stop clears pending jobs
// Given: A job scheduled far in the future
// When: Stop is called
// Then: The job count drops to zero and nothing is delivered
func TestDelayScheduler_StopDropsPending(t *testing.T) {
	rec := newDeliveryRecorder()
	ds := NewDelayScheduler(rec.deliver)

	ds.Add(JobItem{Job: func(ctx context.Context, arg any) {}}, time.Hour)
	if got := ds.JobCount(); got != 1 {
		t.Fatalf("JobCount() = %d, want 1", got)
	}

	ds.Stop()

	if got := ds.JobCount(); got != 0 {
		t.Errorf("JobCount() after Stop = %d, want 0", got)
	}
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 0 {
		t.Errorf("deliveries after Stop = %d, want 0", got)
	}
}
