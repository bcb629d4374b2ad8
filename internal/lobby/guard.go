package lobby

import (
	"log/slog"
	"sync"
	"time"
)

// hold is one active (session, operation) entry. Its pointer identity ties a
// safety timer to the hold that armed it, so a fired timer cannot release a
// hold it does not own.
type hold struct {
	timer *time.Timer
}

// Guard provides per-session, per-operation mutual exclusion for lifecycle
// transitions. Exit is the primary release path; every entry also carries a
// safety timer so a crashed or hung operation cannot deadlock its session
// forever.
type Guard struct {
	mu     sync.Mutex
	window time.Duration
	active map[string]map[Operation]*hold
}

func NewGuard(window time.Duration) *Guard {
	return &Guard{
		window: window,
		active: make(map[string]map[Operation]*hold),
	}
}

// Enter records op as active for the session. It returns false when the same
// operation is already in flight, in which case the caller must drop its
// trigger rather than double-process the session.
func (g *Guard) Enter(sessionID string, op Operation) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ops, ok := g.active[sessionID]
	if !ok {
		ops = make(map[Operation]*hold)
		g.active[sessionID] = ops
	}
	if _, held := ops[op]; held {
		return false
	}
	h := &hold{}
	h.timer = time.AfterFunc(g.window, func() {
		g.safetyRelease(sessionID, op, h)
	})
	ops[op] = h
	return true
}

// Exit releases op. Releasing an operation that is not held is a no-op, so
// deferred exits stay safe after ReleaseSession.
func (g *Guard) Exit(sessionID string, op Operation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ops, ok := g.active[sessionID]
	if !ok {
		return
	}
	h, held := ops[op]
	if !held {
		return
	}
	h.timer.Stop()
	delete(ops, op)
	if len(ops) == 0 {
		delete(g.active, sessionID)
	}
}

func (g *Guard) IsActive(sessionID string, op Operation) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.active[sessionID][op]
	return held
}

// AnyActive reports whether any lifecycle operation currently holds the
// session. The sweeper uses it to skip sessions mid-transition.
func (g *Guard) AnyActive(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active[sessionID]) > 0
}

// ReleaseSession drops every held operation for a torn-down session and
// stops their safety timers.
func (g *Guard) ReleaseSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, h := range g.active[sessionID] {
		h.timer.Stop()
	}
	delete(g.active, sessionID)
}

func (g *Guard) safetyRelease(sessionID string, op Operation, fired *hold) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ops, ok := g.active[sessionID]
	if !ok {
		return
	}
	current, held := ops[op]
	if !held || current != fired {
		// The hold that armed this timer is gone; a fresh one owns the
		// slot now and must not be released out from under it.
		return
	}
	delete(ops, op)
	if len(ops) == 0 {
		delete(g.active, sessionID)
	}
	slog.Warn("guard safety release fired; operation never exited",
		"session_id", sessionID,
		"operation", string(op),
		"window", g.window)
}
