package lobby

import (
	"sync"
	"testing"
	"time"
)

func TestGuard_MutualExclusion(t *testing.T) {
	g := NewGuard(time.Minute)
	if !g.Enter("s1", OpStarting) {
		t.Fatal("first enter should succeed")
	}
	if g.Enter("s1", OpStarting) {
		t.Fatal("second enter for the same operation must be rejected")
	}
	if !g.Enter("s1", OpCleanup) {
		t.Fatal("a different operation on the same session should be independent")
	}
	if !g.Enter("s2", OpStarting) {
		t.Fatal("the same operation on a different session should be independent")
	}
}

func TestGuard_ExitAllowsReEntry(t *testing.T) {
	g := NewGuard(time.Minute)
	g.Enter("s1", OpStarting)
	g.Exit("s1", OpStarting)
	if !g.Enter("s1", OpStarting) {
		t.Fatal("enter after exit should succeed")
	}
}

func TestGuard_ExitWithoutEnterIsNoop(t *testing.T) {
	g := NewGuard(time.Minute)
	g.Exit("s1", OpStarting)
	if g.IsActive("s1", OpStarting) {
		t.Fatal("exit on unheld operation must not create state")
	}
}

func TestGuard_ConcurrentEntersOnlyOneWins(t *testing.T) {
	g := NewGuard(time.Minute)
	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Enter("s1", OpStarting) {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestGuard_SafetyReleaseFires(t *testing.T) {
	g := NewGuard(20 * time.Millisecond)
	g.Enter("s1", OpStarting)

	deadline := time.Now().Add(time.Second)
	for g.IsActive("s1", OpStarting) {
		if time.Now().After(deadline) {
			t.Fatal("safety release never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !g.Enter("s1", OpStarting) {
		t.Fatal("enter after safety release should succeed")
	}
}

func TestGuard_StaleSafetyReleaseSparesFreshHold(t *testing.T) {
	g := NewGuard(10 * time.Millisecond)
	if !g.Enter("s1", OpStarting) {
		t.Fatal("enter failed")
	}

	// Hold the guard lock past the safety window so the fired timer
	// blocks, then swap the hold the way an Exit followed by a fresh
	// Enter would while the stale callback is still waiting.
	g.mu.Lock()
	time.Sleep(30 * time.Millisecond)
	g.active["s1"][OpStarting].timer.Stop()
	delete(g.active["s1"], OpStarting)
	fresh := &hold{timer: time.AfterFunc(time.Hour, func() {})}
	defer fresh.timer.Stop()
	g.active["s1"][OpStarting] = fresh
	g.mu.Unlock()

	// Give the stale callback time to run against the fresh hold.
	time.Sleep(30 * time.Millisecond)
	if !g.IsActive("s1", OpStarting) {
		t.Fatal("stale safety timer released a hold it does not own")
	}
	if g.Enter("s1", OpStarting) {
		t.Fatal("enter must fail while the fresh hold is in place")
	}
	g.ReleaseSession("s1")
}

func TestGuard_ReleaseSessionDropsAll(t *testing.T) {
	g := NewGuard(time.Minute)
	g.Enter("s1", OpStarting)
	g.Enter("s1", OpCleanup)
	g.ReleaseSession("s1")
	if g.AnyActive("s1") {
		t.Fatal("expected no active operations after session release")
	}
	if !g.Enter("s1", OpStarting) {
		t.Fatal("enter after session release should succeed")
	}
}
