package pagetable

import (
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/mem"
)

// VPN is a virtual page number (virtual address >> PGShift).
type VPN uintptr

// index returns the 9-bit index this VPN contributes at SV39 level
// lvl (2 = top level, 0 = leaf level).
func (v VPN) index(lvl int) int {
	return int(v>>(9*uint(lvl))) & 0x1ff
}

// Table is an owned page table: a root frame plus every non-root frame
// it allocated for intermediate nodes. Its lifetime is the lifetime of
// the address space that owns it (spec.md §3).
type Table struct {
	alloc    *mem.Allocator
	root     mem.Frame
	rootH    *mem.FrameHandle // nil for read-only views built by FromToken
	owned    []*mem.FrameHandle
	readOnly bool
}

// New allocates a fresh, empty root table.
func New(alloc *mem.Allocator) (*Table, bool) {
	h, ok := alloc.Alloc()
	if !ok {
		return nil, false
	}
	return &Table{alloc: alloc, root: h.Frame(), rootH: h}, true
}

// Token encodes the root frame as an SV39 satp value (mode 8 = Sv39).
func (t *Table) Token() uint64 {
	return uint64(8)<<60 | uint64(t.root)
}

// FromToken builds a read-only view over an already-existing page
// table identified by an satp-style token, per spec.md §4.2's
// "from_token constructs a read-only view ... (no owned frames)".
func FromToken(alloc *mem.Allocator, token uint64) *Table {
	root := mem.Frame(token & ((1 << 44) - 1))
	return &Table{alloc: alloc, root: root, readOnly: true}
}

func (t *Table) readPTE(frame mem.Frame, idx int) PTE {
	b := t.alloc.Bytes(frame)[idx*8 : idx*8+8]
	var v uint64
	for j := 0; j < 8; j++ {
		v |= uint64(b[j]) << (8 * j)
	}
	return PTE(v)
}

func (t *Table) writePTE(frame mem.Frame, idx int, p PTE) {
	b := t.alloc.Bytes(frame)[idx*8 : idx*8+8]
	v := uint64(p)
	for j := 0; j < 8; j++ {
		b[j] = byte(v >> (8 * j))
	}
}

// walk returns the address of the leaf PTE for vpn, allocating
// intermediate node frames on the way if allocate is true. It returns
// ok=false when an intermediate level is missing and allocate is
// false, or when a required allocation failed.
func (t *Table) walk(vpn VPN, allocate bool) (frame mem.Frame, idx int, ok bool) {
	cur := t.root
	for lvl := 2; lvl > 0; lvl-- {
		i := vpn.index(lvl)
		pte := t.readPTE(cur, i)
		if !pte.Valid() {
			if !allocate {
				return 0, 0, false
			}
			if t.readOnly {
				panic("pagetable: cannot allocate through a read-only view")
			}
			h, got := t.alloc.Alloc()
			if !got {
				return 0, 0, false
			}
			t.owned = append(t.owned, h)
			t.writePTE(cur, i, mkNode(h.Frame()))
			cur = h.Frame()
			continue
		}
		if pte.IsLeaf() {
			panic("pagetable: non-leaf level holds a leaf entry")
		}
		cur = pte.Frame()
	}
	return cur, vpn.index(0), true
}

// Map creates (allocating intermediate tables on demand) a leaf
// mapping from vpn to frame with the given flags. It returns false if
// an intermediate allocation failed.
func (t *Table) Map(vpn VPN, frame mem.Frame, flags Flag) bool {
	if t.readOnly {
		panic("pagetable: Map on read-only view")
	}
	leafFrame, idx, ok := t.walk(vpn, true)
	if !ok {
		return false
	}
	if t.readPTE(leafFrame, idx).Valid() {
		panic("pagetable: remapping an already-valid vpn")
	}
	t.writePTE(leafFrame, idx, MkLeaf(frame, flags))
	return true
}

// Unmap clears the leaf entry for vpn. It does not prune now-empty
// intermediate tables, matching spec.md §4.2.
func (t *Table) Unmap(vpn VPN) {
	if t.readOnly {
		panic("pagetable: Unmap on read-only view")
	}
	leafFrame, idx, ok := t.walk(vpn, false)
	if !ok || !t.readPTE(leafFrame, idx).Valid() {
		panic("pagetable: unmapping an unmapped vpn")
	}
	t.writePTE(leafFrame, idx, 0)
}

// Translate walks the table without allocating and reports the leaf
// PTE for vpn, if mapped.
func (t *Table) Translate(vpn VPN) (PTE, bool) {
	leafFrame, idx, ok := t.walk(vpn, false)
	if !ok {
		return 0, false
	}
	pte := t.readPTE(leafFrame, idx)
	if !pte.Valid() {
		return 0, false
	}
	return pte, true
}

// IsMapped reports whether va is mapped with at least the required
// flags set and V present, per spec.md §4.2.
func (t *Table) IsMapped(va uintptr, required Flag) bool {
	pte, ok := t.Translate(VPN(va >> config.PGShift))
	if !ok {
		return false
	}
	return pte.HasAll(required | V)
}

// Root returns the root frame number, used when constructing a token
// or when a caller needs to tear the table down.
func (t *Table) Root() mem.Frame { return t.root }

// OwnedFrames returns every non-root frame this table allocated, so a
// caller tearing down an address space can free them alongside the
// root (spec.md §4.3 Uvmfree semantics).
func (t *Table) OwnedFrames() []*mem.FrameHandle { return t.owned }

// RootHandle returns the owning handle for the root frame, or nil for
// a read-only view built with FromToken.
func (t *Table) RootHandle() *mem.FrameHandle { return t.rootH }
