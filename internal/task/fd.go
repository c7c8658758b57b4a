package task

import (
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/file"
)

// Fd is one entry of a task's file descriptor table, grounded on the
// teacher's Fd_t (fd/fd.go): the open file plus its own flags,
// decoupled from any other descriptor referring to the same file.
type Fd struct {
	File    file.File
	CloseOE bool // close-on-exec
}

// FdTable is a per-task array of descriptor slots. Index 0/1/2 are
// conventionally stdin/stdout/stderr, installed by TCB.InstallStdio.
type FdTable struct {
	slots []*Fd
}

func newFdTable() *FdTable { return &FdTable{} }

// Alloc installs f in the lowest free slot and returns its descriptor
// number.
func (t *FdTable) Alloc(f file.File) int {
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = &Fd{File: f}
			return i
		}
	}
	t.slots = append(t.slots, &Fd{File: f})
	return len(t.slots) - 1
}

// Install places f at a chosen descriptor number, used by dup2-style
// operations and stdio setup. Existing entries at fd are overwritten,
// never closed implicitly by Install.
func (t *FdTable) Install(fd int, f file.File) {
	for len(t.slots) <= fd {
		t.slots = append(t.slots, nil)
	}
	t.slots[fd] = &Fd{File: f}
}

// Get returns the descriptor at fd, or EBADF if unused/out of range.
func (t *FdTable) Get(fd int) (*Fd, defs.Err_t) {
	if fd < 0 || fd >= len(t.slots) || t.slots[fd] == nil {
		return nil, -defs.EBADF
	}
	return t.slots[fd], 0
}

// Close releases fd, closing the underlying file.
func (t *FdTable) Close(fd int) defs.Err_t {
	slot, err := t.Get(fd)
	if err != 0 {
		return err
	}
	slot.File.Close()
	t.slots[fd] = nil
	return 0
}

// CloseAll closes every open descriptor, called when a task exits so
// reference-counted ends (pipes shared via dup/fork) drop their share
// of the pair instead of leaking it open forever.
func (t *FdTable) CloseAll() {
	for i, s := range t.slots {
		if s != nil {
			s.File.Close()
			t.slots[i] = nil
		}
	}
}

// addRefIfCounted bumps f's reference count when it implements
// file.RefCounted (pipe ends); every other File kind has no shared
// Close state and is left alone.
func addRefIfCounted(f file.File) {
	if rc, ok := f.(file.RefCounted); ok {
		rc.addRef()
	}
}

// Dup duplicates fd to the lowest free slot, sharing the same File
// (and thus its offset, for inode-backed files), per spec.md §4.6's
// sys_dup, grounded on fd.Copyfd's "same Fops, new table slot" shape.
func (t *FdTable) Dup(fd int) (int, defs.Err_t) {
	src, err := t.Get(fd)
	if err != 0 {
		return -1, err
	}
	addRefIfCounted(src.File)
	return t.Alloc(src.File), 0
}

// Clone produces an independent table sharing the same File values,
// used by fork (a forked task shares open files with its parent).
func (t *FdTable) Clone() *FdTable {
	nt := &FdTable{slots: make([]*Fd, len(t.slots))}
	for i, s := range t.slots {
		if s != nil {
			addRefIfCounted(s.File)
			cp := *s
			nt.slots[i] = &cp
		}
	}
	return nt
}

// CloseExecAll closes every close-on-exec descriptor, called by exec.
func (t *FdTable) CloseExecAll() {
	for i, s := range t.slots {
		if s != nil && s.CloseOE {
			s.File.Close()
			t.slots[i] = nil
		}
	}
}
