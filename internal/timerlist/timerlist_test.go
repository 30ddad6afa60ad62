package timerlist

import (
	"testing"
	"time"
)

var base = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

// sorted walks the list and reports whether expiries are non-decreasing and
// the links are consistent both ways.
func sorted(t *testing.T, l *List) {
	t.Helper()
	n := 0
	var prev *Timer
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.prev != prev {
			t.Fatalf("broken prev link at node %d", n)
		}
		if prev != nil && cur.Expire.Before(prev.Expire) {
			t.Fatalf("list out of order at node %d: %v < %v", n, cur.Expire, prev.Expire)
		}
		prev = cur
		n++
	}
	if l.tail != prev {
		t.Fatalf("tail mismatch")
	}
	if n != l.Len() {
		t.Fatalf("size = %d, walked %d", l.Len(), n)
	}
}

func TestAddKeepsOrder(t *testing.T) {
	l := New()
	for _, sec := range []int{30, 10, 20, 10, 40, 5} {
		l.Add(&Timer{Expire: at(sec)})
		sorted(t, l)
	}
	if l.Len() != 6 {
		t.Fatalf("Len = %d, want 6", l.Len())
	}
}

func TestTickFiresInOrderAndDetaches(t *testing.T) {
	l := New()
	var fired []int
	mk := func(sec int) *Timer {
		tm := &Timer{Expire: at(sec)}
		tm.Callback = func() { fired = append(fired, sec) }
		return tm
	}
	timers := []*Timer{mk(10), mk(5), mk(20), mk(15)}
	for _, tm := range timers {
		l.Add(tm)
	}

	l.Tick(at(15))
	want := []int{5, 10, 15}
	if len(fired) != len(want) {
		t.Fatalf("fired %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired %v, want %v", fired, want)
		}
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d after tick, want 1", l.Len())
	}
	for _, tm := range timers {
		if tm.Expire.After(at(15)) != !tm.Detached() {
			t.Fatalf("timer %v detach state wrong", tm.Expire)
		}
	}
	sorted(t, l)

	// A second tick at the same instant fires nothing.
	fired = fired[:0]
	l.Tick(at(15))
	if len(fired) != 0 {
		t.Fatalf("second tick fired %v", fired)
	}
}

func TestAdjustForwardResorts(t *testing.T) {
	l := New()
	a := &Timer{Expire: at(10)}
	b := &Timer{Expire: at(20)}
	c := &Timer{Expire: at(30)}
	l.Add(a)
	l.Add(b)
	l.Add(c)

	l.Adjust(a, at(25))
	sorted(t, l)
	if l.head != b || l.tail != c {
		t.Fatalf("unexpected order after adjust")
	}

	// Adjusting to the far end lands at the tail.
	l.Adjust(b, at(99))
	sorted(t, l)
	if l.tail != b {
		t.Fatalf("adjusted timer should be tail")
	}

	// Backward adjustments are refused; expiry is forward-only.
	l.Adjust(b, at(1))
	if !b.Expire.Equal(at(99)) {
		t.Fatalf("backward adjust changed expiry to %v", b.Expire)
	}
	sorted(t, l)
}

func TestAdjustIdempotent(t *testing.T) {
	l := New()
	a := &Timer{Expire: at(10)}
	b := &Timer{Expire: at(20)}
	l.Add(a)
	l.Add(b)

	l.Adjust(a, at(25))
	l.Adjust(a, at(25))
	sorted(t, l)
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	if l.head != b || l.tail != a {
		t.Fatalf("double adjust changed ordering")
	}
}

func TestRemove(t *testing.T) {
	l := New()
	a := &Timer{Expire: at(10)}
	b := &Timer{Expire: at(20)}
	l.Add(a)
	l.Add(b)

	l.Remove(a)
	if !a.Detached() || l.Len() != 1 {
		t.Fatalf("remove failed")
	}
	sorted(t, l)

	// Removing a detached timer is a no-op.
	l.Remove(a)
	if l.Len() != 1 {
		t.Fatalf("double remove corrupted list")
	}

	l.Remove(b)
	if l.head != nil || l.tail != nil || l.Len() != 0 {
		t.Fatalf("list not empty after removing all")
	}

	// Add after remove works again.
	l.Add(a)
	sorted(t, l)
	if l.Len() != 1 {
		t.Fatalf("re-add failed")
	}
}
