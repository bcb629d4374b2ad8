package lobby

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_CoalescesBurstIntoOneRefresh(t *testing.T) {
	var refreshes int64
	s := NewScheduler(30*time.Millisecond, func(string) {
		atomic.AddInt64(&refreshes, 1)
	})

	for i := 0; i < 8; i++ {
		s.QueueUpdate("s1", false)
	}
	time.Sleep(100 * time.Millisecond)

	if got := atomic.LoadInt64(&refreshes); got != 1 {
		t.Fatalf("expected 1 refresh for a burst, got %d", got)
	}
}

func TestScheduler_ImmediateBypassesDebounce(t *testing.T) {
	var mu sync.Mutex
	var order []string
	s := NewScheduler(time.Hour, func(id string) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	})

	s.QueueUpdate("s1", false)
	s.QueueUpdate("s1", true)

	mu.Lock()
	got := len(order)
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected immediate refresh to run synchronously once, got %d", got)
	}
	// The pending debounced refresh must have been superseded.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	got = len(order)
	mu.Unlock()
	if got != 1 {
		t.Fatalf("superseded refresh still fired, got %d total", got)
	}
}

func TestScheduler_PerSessionIsolation(t *testing.T) {
	var refreshes sync.Map
	s := NewScheduler(20*time.Millisecond, func(id string) {
		v, _ := refreshes.LoadOrStore(id, new(int64))
		atomic.AddInt64(v.(*int64), 1)
	})

	s.QueueUpdate("s1", false)
	s.QueueUpdate("s2", false)
	time.Sleep(80 * time.Millisecond)

	for _, id := range []string{"s1", "s2"} {
		v, ok := refreshes.Load(id)
		if !ok || atomic.LoadInt64(v.(*int64)) != 1 {
			t.Fatalf("expected exactly one refresh for %s", id)
		}
	}
}

func TestScheduler_StaleTimerSparesRescheduledEntry(t *testing.T) {
	var refreshes int64
	s := NewScheduler(10*time.Millisecond, func(string) {
		atomic.AddInt64(&refreshes, 1)
	})
	s.QueueUpdate("s1", false)

	// Hold the scheduler lock past the debounce window so the fired
	// timer blocks, then swap in a new pending entry the way a
	// superseding QueueUpdate would.
	s.mu.Lock()
	time.Sleep(30 * time.Millisecond)
	s.pending["s1"].timer.Stop()
	fresh := &pendingRefresh{timer: time.AfterFunc(time.Hour, func() {})}
	defer fresh.timer.Stop()
	s.pending["s1"] = fresh
	s.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&refreshes); got != 0 {
		t.Fatalf("stale timer must not refresh a rescheduled entry, got %d", got)
	}
	s.CancelPending("s1")
}

func TestScheduler_CancelPendingStopsRefresh(t *testing.T) {
	var refreshes int64
	s := NewScheduler(20*time.Millisecond, func(string) {
		atomic.AddInt64(&refreshes, 1)
	})

	s.QueueUpdate("s1", false)
	s.CancelPending("s1")
	time.Sleep(60 * time.Millisecond)

	if got := atomic.LoadInt64(&refreshes); got != 0 {
		t.Fatalf("expected no refresh after cancel, got %d", got)
	}
}
