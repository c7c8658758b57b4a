// Package pagetable implements a 3-level SV39-style radix page table,
// grounded on the teacher's vm.as.go pmap walk but with RISC-V's PTE
// layout (V/R/W/X/U/G/A/D in the low byte, PPN in bits 53..10) instead
// of biscuit's x86 bits.
package pagetable

import "github.com/RainaX/rCore-v3/internal/mem"

// Flag is one protection/status bit of a page table entry.
type Flag uint64

// SV39 PTE flag bits.
const (
	V Flag = 1 << 0 // valid
	R Flag = 1 << 1 // readable
	W Flag = 1 << 2 // writable
	X Flag = 1 << 3 // executable
	U Flag = 1 << 4 // user accessible
	G Flag = 1 << 5 // global
	A Flag = 1 << 6 // accessed
	D Flag = 1 << 7 // dirty
)

const ppnShift = 10

// PTE is one 64-bit page table entry.
type PTE uint64

// MkLeaf builds a leaf PTE mapping frame with the given flags. At
// least one of R/W/X must be set, per spec.md §3's PageTableEntry
// invariant.
func MkLeaf(frame mem.Frame, flags Flag) PTE {
	if flags&(R|W|X) == 0 {
		panic("pagetable: leaf pte without R/W/X")
	}
	return PTE(uint64(frame)<<ppnShift | uint64(flags) | uint64(V))
}

// mkNode builds a non-leaf PTE pointing at an intermediate table.
func mkNode(frame mem.Frame) PTE {
	return PTE(uint64(frame)<<ppnShift | uint64(V))
}

// Valid reports whether V is set.
func (p PTE) Valid() bool { return p&PTE(V) != 0 }

// IsLeaf reports whether any of R/W/X is set (a non-leaf node carries
// only V).
func (p PTE) IsLeaf() bool { return p&PTE(R|W|X) != 0 }

// Frame extracts the physical page number this entry addresses.
func (p PTE) Frame() mem.Frame { return mem.Frame(p >> ppnShift) }

// Flags returns the low 8 status/protection bits.
func (p PTE) Flags() Flag { return Flag(p) & (V | R | W | X | U | G | A | D) }

// HasAll reports whether every bit in want is set.
func (p PTE) HasAll(want Flag) bool { return Flag(p)&want == want }
