// Package timerlist implements the idle-connection expiry structure: a
// doubly linked list of timers kept sorted by expiry time, ascending.
//
// The list owns its nodes. A connection keeps a non-owning *Timer handle and
// must drop it when the timer fires or is removed; Detached reports whether a
// handle no longer sits in a list, so stale handles degrade to no-ops.
package timerlist

import "time"

// Timer is one idle-timeout record. Expire is absolute and only ever moves
// forward for a given timer.
type Timer struct {
	Expire   time.Time
	Callback func()

	prev, next *Timer
	list       *List
}

// Detached reports whether t is not currently linked into a list.
func (t *Timer) Detached() bool {
	return t == nil || t.list == nil
}

// List is the ordered timer list. Not safe for concurrent use; the reactor
// goroutine is its only caller.
type List struct {
	head, tail *Timer
	size       int
}

// New creates an empty list.
func New() *List {
	return &List{}
}

// Len returns the number of timers in the list.
func (l *List) Len() int {
	return l.size
}

// Add inserts t before the first node whose expiry is not earlier than
// t.Expire, keeping the list sorted. O(n).
func (l *List) Add(t *Timer) {
	if t == nil || t.list != nil {
		return
	}
	l.insertFrom(l.head, t)
}

// Adjust moves t to expire at the given later time. The walk restarts from
// t's old successor since expiries only move forward.
func (l *List) Adjust(t *Timer, expire time.Time) {
	if t == nil || t.list != l {
		return
	}
	if expire.Before(t.Expire) {
		return
	}
	at := t.next
	l.remove(t)
	t.Expire = expire
	l.insertFrom(at, t)
}

// Remove detaches t from the list. O(1). A detached timer is a no-op.
func (l *List) Remove(t *Timer) {
	if t == nil || t.list != l {
		return
	}
	l.remove(t)
}

// Tick detaches and fires every timer whose expiry is at or before now, in
// expiry order.
func (l *List) Tick(now time.Time) {
	for l.head != nil && !l.head.Expire.After(now) {
		t := l.head
		l.remove(t)
		if t.Callback != nil {
			t.Callback()
		}
	}
}

func (l *List) insertFrom(at, t *Timer) {
	pos := at
	for pos != nil && pos.Expire.Before(t.Expire) {
		pos = pos.next
	}
	t.list = l
	l.size++
	if pos == nil { // append at tail
		t.prev = l.tail
		t.next = nil
		if l.tail != nil {
			l.tail.next = t
		} else {
			l.head = t
		}
		l.tail = t
		return
	}
	t.prev = pos.prev
	t.next = pos
	if pos.prev != nil {
		pos.prev.next = t
	} else {
		l.head = t
	}
	pos.prev = t
}

func (l *List) remove(t *Timer) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		l.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		l.tail = t.prev
	}
	t.prev, t.next, t.list = nil, nil, nil
	l.size--
}
