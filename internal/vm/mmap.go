package vm

import (
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/pagetable"
)

// ProtToFlag converts the syscall's raw prot bits (low 3 bits = R|W|X)
// into pagetable flags, validating per spec.md §6: must be non-zero
// and carry no bits outside R|W|X.
func ProtToFlag(prot int) (pagetable.Flag, defs.Err_t) {
	if prot == 0 || prot&^0x7 != 0 {
		return 0, -defs.EINVAL
	}
	var f pagetable.Flag
	if prot&0x1 != 0 {
		f |= pagetable.R
	}
	if prot&0x2 != 0 {
		f |= pagetable.W
	}
	if prot&0x4 != 0 {
		f |= pagetable.X
	}
	return f | pagetable.U, 0
}

// Mmap validates and installs a page-aligned anonymous mapping,
// failing if the range is misaligned, too large, or any page in it is
// already mapped, per spec.md §6.
func (as *AddressSpace) Mmap(start, length uintptr, prot int) defs.Err_t {
	if !pageAlign(start) || length == 0 || length > config.MmapMaxLen {
		return -defs.EINVAL
	}
	flags, err := ProtToFlag(prot)
	if err != 0 {
		return err
	}
	end := start + roundup(length)

	as.Lock()
	for va := start; va < end; va += config.PGSize {
		if as.Table.IsMapped(va, 0) {
			as.Unlock()
			return -defs.EINVAL
		}
	}
	as.Unlock()
	return as.InsertFramedArea(start, end, flags)
}

// Munmap fails if any page of [start, start+length) is not currently
// mapped with the user bit, per spec.md §6. Otherwise it releases the
// range only when it exactly matches one area's bounds; any other
// range fails with EINVAL.
func (as *AddressSpace) Munmap(start, length uintptr) defs.Err_t {
	if !pageAlign(start) || length == 0 {
		return -defs.EINVAL
	}
	end := start + roundup(length)

	as.Lock()
	for va := start; va < end; va += config.PGSize {
		if !as.Table.IsMapped(va, pagetable.U) {
			as.Unlock()
			return -defs.EINVAL
		}
	}
	as.Unlock()
	return as.UnmapFramedArea(start, end)
}

func roundup(n uintptr) uintptr {
	return (n + config.PGMask) &^ config.PGMask
}

// LoadU64 simulates a user-mode `ld` at va: a direct memory read, not
// one mediated by a syscall argument check, the kind scenario 5 of
// spec.md §8 exercises against memory just released by Munmap. An
// unmapped or permission-mismatched va is reported as a fault rather
// than an Err_t, since on real hardware this is a trap, not a return
// value.
func (as *AddressSpace) LoadU64(va uintptr) (uint64, bool) {
	as.Lock()
	defer as.Unlock()
	if !as.Table.IsMapped(va, pagetable.R|pagetable.U) {
		return 0, false
	}
	bufs := as.Table.TranslatedByteBuffer(va, 8)
	var b [8]byte
	off := 0
	for _, s := range bufs {
		off += copy(b[off:], s)
	}
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56, true
}

// StoreU64 simulates a user-mode `sd` at va, the write-side counterpart
// of LoadU64.
func (as *AddressSpace) StoreU64(va uintptr, v uint64) bool {
	as.Lock()
	defer as.Unlock()
	if !as.Table.IsMapped(va, pagetable.W|pagetable.U) {
		return false
	}
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
	dsts := as.Table.TranslatedByteBuffer(va, 8)
	off := 0
	for _, d := range dsts {
		off += copy(d, b[off:])
	}
	return true
}
