package lobby

import (
	"testing"
)

func TestWaitlist_FIFOOrder(t *testing.T) {
	w := newWaitlist()
	for _, id := range []string{"a", "b", "c"} {
		if !w.add(id) {
			t.Fatalf("expected add %q to succeed", id)
		}
	}
	for _, want := range []string{"a", "b", "c"} {
		got, ok := w.popFront()
		if !ok || got != want {
			t.Fatalf("expected %q, got %q (ok=%v)", want, got, ok)
		}
	}
	if _, ok := w.popFront(); ok {
		t.Fatal("expected empty waitlist")
	}
}

func TestWaitlist_AddIsIdempotent(t *testing.T) {
	w := newWaitlist()
	if !w.add("a") {
		t.Fatal("first add should succeed")
	}
	if w.add("a") {
		t.Fatal("duplicate add should be a no-op")
	}
	if w.size() != 1 {
		t.Fatalf("expected size 1, got %d", w.size())
	}
}

func TestWaitlist_RemoveMidQueue(t *testing.T) {
	w := newWaitlist()
	w.add("a")
	w.add("b")
	w.add("c")
	if !w.remove("b") {
		t.Fatal("expected remove to succeed")
	}
	if w.remove("b") {
		t.Fatal("second remove should report absence")
	}
	got, _ := w.popFront()
	if got != "a" {
		t.Fatalf("expected a, got %q", got)
	}
	got, _ = w.popFront()
	if got != "c" {
		t.Fatalf("expected c, got %q", got)
	}
}

func TestWaitlist_ReAddAfterRemoveKeepsNewPosition(t *testing.T) {
	w := newWaitlist()
	w.add("a")
	w.add("b")
	w.remove("a")
	w.add("a")

	got, _ := w.popFront()
	if got != "b" {
		t.Fatalf("expected b first after a re-queued, got %q", got)
	}
	got, _ = w.popFront()
	if got != "a" {
		t.Fatalf("expected a second, got %q", got)
	}
}

func TestWaitlist_EntriesElideTombstones(t *testing.T) {
	w := newWaitlist()
	w.add("a")
	w.add("b")
	w.add("c")
	w.remove("b")

	entries := w.entries()
	if len(entries) != 2 || entries[0] != "a" || entries[1] != "c" {
		t.Fatalf("unexpected entries: %v", entries)
	}
}
