package vm

import (
	"testing"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/pagetable"
)

// TestMmapStoreLoadRoundtrip covers the first half of spec.md §8
// scenario 5: a fresh mapping accepts stores and returns them on load.
func TestMmapStoreLoadRoundtrip(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	as, err := New(alloc)
	if err != 0 {
		t.Fatalf("New failed: %d", err)
	}

	const start = uintptr(0x10000000)
	const length = 0x4000
	if err := as.Mmap(start, length, 0x3); err != 0 { // R|W
		t.Fatalf("Mmap failed: %d", err)
	}

	if !as.StoreU64(start, 0xdeadbeef) {
		t.Fatal("StoreU64 into a freshly mapped region should succeed")
	}
	v, ok := as.LoadU64(start)
	if !ok || v != 0xdeadbeef {
		t.Fatalf("LoadU64 = (%#x, %v), want (0xdeadbeef, true)", v, ok)
	}
}

// TestMunmapThenLoadFaults covers the second half of scenario 5: once
// a region is released, a subsequent load against it must report a
// fault rather than silently succeeding or panicking.
func TestMunmapThenLoadFaults(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	as, err := New(alloc)
	if err != 0 {
		t.Fatalf("New failed: %d", err)
	}

	const start = uintptr(0x10000000)
	const length = 0x4000
	if err := as.Mmap(start, length, 0x3); err != 0 {
		t.Fatalf("Mmap failed: %d", err)
	}
	as.StoreU64(start, 1)

	if err := as.Munmap(start, length); err != 0 {
		t.Fatalf("Munmap failed: %d", err)
	}

	if _, ok := as.LoadU64(start); ok {
		t.Error("LoadU64 against unmapped memory should report a fault, not succeed")
	}
}

func TestMmapRejectsUnalignedStart(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	as, _ := New(alloc)
	if err := as.Mmap(1, config.PGSize, 0x3); err != -defs.EINVAL {
		t.Errorf("Mmap with unaligned start = %d, want EINVAL", err)
	}
}

func TestMunmapRejectsUnmappedRange(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	as, _ := New(alloc)
	if err := as.Munmap(0x20000000, config.PGSize); err != -defs.EINVAL {
		t.Errorf("Munmap of never-mapped memory = %d, want EINVAL", err)
	}
}

func TestStoreU64RespectsReadOnlyMapping(t *testing.T) {
	alloc := mem.NewAllocator(0, 64)
	as, _ := New(alloc)
	const start = uintptr(0x30000000)
	if err := as.Mmap(start, config.PGSize, 0x1); err != 0 { // R only
		t.Fatalf("Mmap failed: %d", err)
	}
	if as.StoreU64(start, 1) {
		t.Error("StoreU64 into a read-only mapping should fail")
	}
	if !as.Table.IsMapped(start, pagetable.R|pagetable.U) {
		t.Error("region should still be readable")
	}
}
