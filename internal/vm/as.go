package vm

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/pagetable"
)

// AddressSpace is a root page table plus its ordered set of framed
// areas, the Go analogue of the teacher's Vm_t. The mutex serializes
// modifications the same way Vm_t's embedded sync.Mutex does.
type AddressSpace struct {
	sync.Mutex
	alloc *mem.Allocator
	Table *pagetable.Table
	areas areaList

	// The trap-context page's frame. Load maps the trampoline and
	// trap-context pages at fixed virtual addresses; New and
	// FromExistedUser do not map them.
	trapCtxFrame *mem.FrameHandle
}

// New builds an empty address space: just a root table, no mappings.
func New(alloc *mem.Allocator) (*AddressSpace, defs.Err_t) {
	t, ok := pagetable.New(alloc)
	if !ok {
		return nil, -defs.ENOMEM
	}
	return &AddressSpace{alloc: alloc, Table: t}, 0
}

// Token returns the satp-style value identifying this address space's
// root table, handed to syscall glue as the "token" spec.md §4.2
// refers to.
func (as *AddressSpace) Token() uint64 { return as.Table.Token() }

// InsertFramedArea maps a fresh, anonymous, zero-filled region
// [start,end) with the given permissions. It fails if the range
// overlaps an existing framed area or a frame allocation fails,
// exactly as spec.md §4.3 describes.
func (as *AddressSpace) InsertFramedArea(start, end uintptr, perm pagetable.Flag) defs.Err_t {
	if !pageAlign(start) || !pageAlign(end) {
		return -defs.EINVAL
	}
	sv := pagetable.VPN(start >> config.PGShift)
	ev := pagetable.VPN(end >> config.PGShift)
	cand := newArea(sv, ev, perm)

	as.Lock()
	defer as.Unlock()
	for _, a := range as.areas {
		if a.overlaps(cand) {
			return -defs.EINVAL
		}
	}
	if err := cand.mapInto(as.Table, as.alloc); err != 0 {
		return err
	}
	as.areas = append(as.areas, cand)
	return 0
}

// UnmapFramedArea removes the mapping exactly matching an existing
// area's bounds and returns its frames to the allocator.
func (as *AddressSpace) UnmapFramedArea(start, end uintptr) defs.Err_t {
	sv := pagetable.VPN(start >> config.PGShift)
	ev := pagetable.VPN(end >> config.PGShift)

	as.Lock()
	defer as.Unlock()
	a, idx := as.areas.find(sv, ev)
	if a == nil {
		return -defs.EINVAL
	}
	a.unmapFrom(as.Table)
	as.areas = append(as.areas[:idx], as.areas[idx+1:]...)
	return 0
}

// RecycleDataPages drops every framed area (and its frames) on process
// exit, leaving the page-table node frames themselves to be freed with
// the Table, per spec.md §4.3.
func (as *AddressSpace) RecycleDataPages() {
	as.Lock()
	defer as.Unlock()
	for _, a := range as.areas {
		a.unmapFrom(as.Table)
	}
	as.areas = nil
}

// Destroy releases every frame the address space owns: its framed
// areas, then the page table's own node frames (including the root).
func (as *AddressSpace) Destroy() {
	as.RecycleDataPages()
	for _, h := range as.Table.OwnedFrames() {
		h.Dealloc()
	}
	if root := as.Table.RootHandle(); root != nil {
		root.Dealloc()
	}
	if as.trapCtxFrame != nil {
		as.trapCtxFrame.Dealloc()
		as.trapCtxFrame = nil
	}
}

// FromExistedUser builds an independent copy of src: a new page table,
// and for each of src's MapAreas, fresh frames with the source bytes
// copied in — spec.md §4.3's fork semantics (eager copy, no COW).
func FromExistedUser(src *AddressSpace, alloc *mem.Allocator) (*AddressSpace, defs.Err_t) {
	src.Lock()
	defer src.Unlock()

	dst, err := New(alloc)
	if err != 0 {
		return nil, err
	}
	for _, a := range src.areas {
		na, err := a.cloneInto(dst.Table, alloc)
		if err != 0 {
			dst.Destroy()
			return nil, err
		}
		dst.areas = append(dst.areas, na)
	}
	return dst, 0
}

// MapTrapContext installs the fixed trap-context page just below the
// trampoline, present in every address space per spec.md §3.
func (as *AddressSpace) MapTrapContext() defs.Err_t {
	h, ok := as.alloc.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	vpn := pagetable.VPN(config.TrapContextVA >> config.PGShift)
	as.Lock()
	defer as.Unlock()
	if !as.Table.Map(vpn, h.Frame(), pagetable.R|pagetable.W) {
		h.Dealloc()
		return -defs.ENOMEM
	}
	as.trapCtxFrame = h
	return 0
}

// TrapContextBytes returns the backing bytes of the trap-context page.
func (as *AddressSpace) TrapContextBytes() []byte {
	if as.trapCtxFrame == nil {
		panic("vm: trap context not mapped")
	}
	return as.trapCtxFrame.Bytes()
}

// MapTrampoline maps the single, kernel-owned trampoline frame
// read+exec at the fixed high address shared by every address space.
// Every address space maps the *same* physical frame, matching
// spec.md §3's "trampoline page ... shared across all address spaces".
func (as *AddressSpace) MapTrampoline(trampoline mem.Frame) {
	vpn := pagetable.VPN(config.TrampolineVA >> config.PGShift)
	as.Lock()
	defer as.Unlock()
	if !as.Table.Map(vpn, trampoline, pagetable.R|pagetable.X) {
		panic("vm: trampoline mapping cannot fail, no allocation needed")
	}
}

// IsMapped reports whether va is mapped with at least the required
// flags, used by syscall glue before touching TranslatedByteBuffer.
func (as *AddressSpace) IsMapped(va uintptr, required pagetable.Flag) bool {
	as.Lock()
	defer as.Unlock()
	return as.Table.IsMapped(va, required)
}
