// +build linux

package netpoll

import "golang.org/x/sys/unix"

// InitEvents is the initial capacity of the event list handed to epoll_wait.
const InitEvents = 128

type eventList struct {
	size   int
	events []unix.EpollEvent
}

func newEventList(size int) *eventList {
	return &eventList{size, make([]unix.EpollEvent, size)}
}

func (el *eventList) expand() {
	el.size <<= 1
	el.events = make([]unix.EpollEvent, el.size)
}

func (el *eventList) shrink() {
	if el.size <= InitEvents {
		return
	}
	el.size >>= 1
	el.events = make([]unix.EpollEvent, el.size)
}
