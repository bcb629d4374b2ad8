package lobby

import (
	"github.com/eapache/queue"
)

// waitlist is a FIFO queue with duplicate suppression and mid-queue removal.
// The ring buffer only grows at the tail, so removals are recorded as
// tombstone counts and skipped when the entry surfaces at the head. A user
// who leaves and re-queues keeps their new position, not the old one.
type waitlist struct {
	ring    *queue.Queue
	members map[string]struct{}
	removed map[string]int
}

func newWaitlist() *waitlist {
	return &waitlist{
		ring:    queue.New(),
		members: make(map[string]struct{}),
		removed: make(map[string]int),
	}
}

// add enqueues userID. It is idempotent: adding a user who is already
// waiting returns false and leaves the queue unchanged.
func (w *waitlist) add(userID string) bool {
	if _, ok := w.members[userID]; ok {
		return false
	}
	w.ring.Add(userID)
	w.members[userID] = struct{}{}
	return true
}

func (w *waitlist) remove(userID string) bool {
	if _, ok := w.members[userID]; !ok {
		return false
	}
	delete(w.members, userID)
	w.removed[userID]++
	return true
}

// popFront removes and returns the earliest still-queued user, skipping
// tombstoned entries. The second return is false when the queue is empty.
func (w *waitlist) popFront() (string, bool) {
	for w.ring.Length() > 0 {
		userID, _ := w.ring.Peek().(string)
		w.ring.Remove()
		if w.removed[userID] > 0 {
			w.removed[userID]--
			if w.removed[userID] == 0 {
				delete(w.removed, userID)
			}
			continue
		}
		delete(w.members, userID)
		return userID, true
	}
	return "", false
}

func (w *waitlist) size() int {
	return len(w.members)
}

// entries returns the queue in FIFO order with tombstones elided.
func (w *waitlist) entries() []string {
	if len(w.members) == 0 {
		return nil
	}
	skip := make(map[string]int, len(w.removed))
	for k, v := range w.removed {
		skip[k] = v
	}
	out := make([]string, 0, len(w.members))
	for i := 0; i < w.ring.Length(); i++ {
		userID, _ := w.ring.Get(i).(string)
		if skip[userID] > 0 {
			skip[userID]--
			continue
		}
		out = append(out, userID)
	}
	return out
}
