package lobby

import (
	"sync"
	"time"
)

// pendingRefresh is one armed debounce window. Its pointer identity ties the
// timer callback to the entry that armed it, so a stale fire cannot cut a
// superseding window short.
type pendingRefresh struct {
	timer *time.Timer
}

// Scheduler debounces embed refreshes per session. A burst of mutations
// collapses into one refresh after the debounce window; terminal transitions
// pass immediate=true to bypass the window entirely. A newly queued refresh
// always supersedes a pending one, so a session never runs two refreshes for
// the same window.
type Scheduler struct {
	mu       sync.Mutex
	debounce time.Duration
	pending  map[string]*pendingRefresh
	refresh  func(sessionID string)
}

func NewScheduler(debounce time.Duration, refresh func(sessionID string)) *Scheduler {
	return &Scheduler{
		debounce: debounce,
		pending:  make(map[string]*pendingRefresh),
		refresh:  refresh,
	}
}

func (s *Scheduler) QueueUpdate(sessionID string, immediate bool) {
	s.mu.Lock()
	if p, ok := s.pending[sessionID]; ok {
		p.timer.Stop()
		delete(s.pending, sessionID)
	}
	if immediate {
		s.mu.Unlock()
		s.refresh(sessionID)
		return
	}
	p := &pendingRefresh{}
	p.timer = time.AfterFunc(s.debounce, func() {
		s.fire(sessionID, p)
	})
	s.pending[sessionID] = p
	s.mu.Unlock()
}

// CancelPending drops any scheduled refresh for a torn-down session so the
// timer cannot fire against a deleted entry.
func (s *Scheduler) CancelPending(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[sessionID]; ok {
		p.timer.Stop()
		delete(s.pending, sessionID)
	}
}

func (s *Scheduler) fire(sessionID string, fired *pendingRefresh) {
	s.mu.Lock()
	current, ok := s.pending[sessionID]
	if !ok || current != fired {
		// Superseded or cancelled between firing and acquiring the lock.
		// A pending entry owned by a newer timer keeps its full window.
		s.mu.Unlock()
		return
	}
	delete(s.pending, sessionID)
	s.mu.Unlock()
	s.refresh(sessionID)
}
