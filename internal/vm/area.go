// Package vm builds a process's address space on top of internal/pagetable
// and internal/mem: map areas, ELF image loading, fork-copy, and
// mmap/munmap, grounded on the teacher's vm.Vm_t/Vmregion_t design in
// vm/as.go but simplified to spec.md's eager-copy fork (no COW) and
// retargeted at SV39 flags.
package vm

import (
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/pagetable"
)

// Kind distinguishes how a MapArea's pages are backed.
type Kind int

const (
	// Identity maps virtual == physical, used only for kernel regions
	// in a real kernel; unused by user address spaces here but kept to
	// mirror spec.md §3's MapArea definition.
	Identity Kind = iota
	// Framed areas own one allocated frame per page.
	Framed
)

// Area is a contiguous virtual range with a permission set, mirroring
// spec.md's MapArea.
type Area struct {
	Start, End pagetable.VPN // [Start, End)
	Perm       pagetable.Flag
	Kind       Kind
	frames     map[pagetable.VPN]*mem.FrameHandle
}

func newArea(start, end pagetable.VPN, perm pagetable.Flag) *Area {
	if end <= start {
		panic("vm: empty map area")
	}
	return &Area{Start: start, End: end, Perm: perm, Kind: Framed, frames: make(map[pagetable.VPN]*mem.FrameHandle)}
}

// overlaps reports whether a and b share any page.
func (a *Area) overlaps(b *Area) bool {
	return a.Start < b.End && b.Start < a.End
}

// mapInto allocates a frame for every page in the area and installs
// the mapping into table. It is called once, when the area is first
// attached to an address space.
func (a *Area) mapInto(table *pagetable.Table, alloc *mem.Allocator) defs.Err_t {
	for vpn := a.Start; vpn < a.End; vpn++ {
		h, ok := alloc.Alloc()
		if !ok {
			return -defs.ENOMEM
		}
		if !table.Map(vpn, h.Frame(), a.Perm|pagetable.V) {
			h.Dealloc()
			return -defs.ENOMEM
		}
		a.frames[vpn] = h
	}
	return 0
}

// unmapFrom removes every page mapping belonging to the area and frees
// its frames.
func (a *Area) unmapFrom(table *pagetable.Table) {
	for vpn := a.Start; vpn < a.End; vpn++ {
		table.Unmap(vpn)
		if h, ok := a.frames[vpn]; ok {
			h.Dealloc()
			delete(a.frames, vpn)
		}
	}
}

// copyBytesFrom copies bytes starting at page offset 0 of the area
// into the already-mapped, already-allocated frames, used when loading
// an ELF segment (spec.md §4.3).
func (a *Area) copyBytesFrom(data []byte) {
	off := 0
	vpn := a.Start
	for off < len(data) && vpn < a.End {
		h := a.frames[vpn]
		n := copy(h.Bytes(), data[off:])
		off += n
		vpn++
	}
}

// cloneInto duplicates the area's contents into a new area owned by
// dstTable, allocating fresh frames and copying bytes — spec.md §4.3's
// from_existed_user semantics (eager copy, not copy-on-write).
func (a *Area) cloneInto(dstTable *pagetable.Table, alloc *mem.Allocator) (*Area, defs.Err_t) {
	dst := newArea(a.Start, a.End, a.Perm)
	if err := dst.mapInto(dstTable, alloc); err != 0 {
		return nil, err
	}
	for vpn := a.Start; vpn < a.End; vpn++ {
		copy(dst.frames[vpn].Bytes(), a.frames[vpn].Bytes())
	}
	return dst, 0
}

// areaList is an address space's framed areas, matching spec.md §3's
// MapArea set; overlap is checked pairwise on insert (InsertFramedArea)
// since the set stays small enough that sorting buys nothing.
type areaList []*Area

func (l areaList) find(start, end pagetable.VPN) (*Area, int) {
	for i, a := range l {
		if a.Start == start && a.End == end {
			return a, i
		}
	}
	return nil, -1
}

func pageAlign(v uintptr) bool { return v&uintptr(config.PGMask) == 0 }
