// Package mem implements the physical frame allocator: a stack-based
// pool over a contiguous physical range, grounded on the teacher's
// mem.Physmem_t but stripped of reference counting, since this kernel
// never shares a frame between two owners (fork copies eagerly, per
// spec.md's address-space design) — a frame has exactly one owner at
// a time, matching spec.md §3's "Frame" invariant.
package mem

import (
	"fmt"
	"sync"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
)

// Frame is a physical page number (address >> PGShift).
type Frame uint64

// Addr returns the physical byte address of the frame.
func (f Frame) Addr() uintptr { return uintptr(f) << config.PGShift }

// Allocator hands out and reclaims physical frames from [start, end).
// It is the Go analogue of the teacher's Physmem_t stack allocator,
// minus the per-page refcount table biscuit needs for COW sharing.
type Allocator struct {
	mu        sync.Mutex
	start     Frame
	end       Frame
	nextFree  Frame // bump pointer into the untouched region
	freelist  []Frame
	allocated map[Frame]bool
	slab      []byte // backing storage for every frame in [start, end)
}

// NewAllocator creates an allocator managing the frame range
// [start, end). The backing storage for the whole range is allocated
// up front, standing in for the "physical memory" a real kernel would
// already own at boot.
func NewAllocator(start, end Frame) *Allocator {
	if end < start {
		panic("mem: bad frame range")
	}
	return &Allocator{
		start:     start,
		end:       end,
		nextFree:  start,
		allocated: make(map[Frame]bool),
		slab:      make([]byte, int(end-start)*config.PGSize),
	}
}

// Bytes returns the page-sized slice of backing storage for f. f must
// belong to this allocator's range.
func (a *Allocator) Bytes(f Frame) []byte {
	if f < a.start || f >= a.end {
		panic("mem: frame out of range")
	}
	off := int(f-a.start) * config.PGSize
	return a.slab[off : off+config.PGSize]
}

// FrameHandle owns exactly one frame. Callers must call Dealloc when
// finished; there is no finalizer, matching the teacher's explicit
// Drop-style cleanup (Uvmfree, Close_panic) rather than relying on GC.
type FrameHandle struct {
	alloc *Allocator
	frame Frame
	freed bool
}

// Frame returns the physical frame number this handle owns.
func (h *FrameHandle) Frame() Frame {
	if h.freed {
		panic("mem: use of freed frame handle")
	}
	return h.frame
}

// Bytes returns the page's backing storage.
func (h *FrameHandle) Bytes() []byte {
	if h.freed {
		panic("mem: use of freed frame handle")
	}
	return h.alloc.Bytes(h.frame)
}

// Dealloc returns the frame to the allocator's free list. Calling it
// twice is a programmer error and panics, matching kind-3 failures in
// spec.md §7.
func (h *FrameHandle) Dealloc() {
	if h.freed {
		panic("mem: double free of frame handle")
	}
	h.freed = true
	h.alloc.dealloc(h.frame)
}

// Alloc returns a zeroed frame, or ok=false if the pool is exhausted.
// Zeroing happens here rather than on free, so a page "appears empty
// to its new owner" per spec.md §4.1 without the allocator needing to
// know how its caller will map the memory.
func (a *Allocator) Alloc() (*FrameHandle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var f Frame
	if n := len(a.freelist); n > 0 {
		f = a.freelist[n-1]
		a.freelist = a.freelist[:n-1]
	} else if a.nextFree < a.end {
		f = a.nextFree
		a.nextFree++
	} else {
		return nil, false
	}
	if a.allocated[f] {
		panic("mem: frame double allocated")
	}
	a.allocated[f] = true
	b := a.Bytes(f)
	for i := range b {
		b[i] = 0
	}
	return &FrameHandle{alloc: a, frame: f}, true
}

// AllocErr is a convenience wrapper returning the spec's Option/None
// convention translated to defs.Err_t for syscall-adjacent callers.
func (a *Allocator) AllocErr() (*FrameHandle, defs.Err_t) {
	h, ok := a.Alloc()
	if !ok {
		return nil, -defs.ENOMEM
	}
	return h, 0
}

func (a *Allocator) dealloc(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if f < a.start || f >= a.end {
		panic("mem: dealloc out of range frame")
	}
	if !a.allocated[f] {
		panic("mem: dealloc of unallocated frame")
	}
	delete(a.allocated, f)
	a.freelist = append(a.freelist, f)
}

// Stats reports the allocator's current occupancy, used by the boot
// banner and the pprof-exported counters (internal/kstat).
func (a *Allocator) Stats() (used, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total = int(a.end - a.start)
	used = int(a.nextFree-a.start) - len(a.freelist)
	return
}

func (a *Allocator) String() string {
	used, total := a.Stats()
	return fmt.Sprintf("frames %d/%d used", used, total)
}
