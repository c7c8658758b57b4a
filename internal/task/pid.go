package task

import "sync"

// pidAllocator hands out increasing pids with reuse of freed ones,
// grounded on the teacher's frame allocator shape (mem.Allocator):
// a bump counter backstopped by a freelist of returned ids.
type pidAllocator struct {
	mu       sync.Mutex
	next     int
	freelist []int
}

func newPidAllocator() *pidAllocator { return &pidAllocator{next: 1} }

func (a *pidAllocator) alloc() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.freelist); n > 0 {
		id := a.freelist[n-1]
		a.freelist = a.freelist[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

func (a *pidAllocator) dealloc(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freelist = append(a.freelist, id)
}
