package task

import (
	"testing"
	"time"

	"github.com/RainaX/rCore-v3/internal/file"
)

// TestFdTableCloseClosesUnderlyingFile covers the maintainer-flagged
// gap: sys_close must actually release the file, not just nil the
// slot, so a pipe writer's Close wakes a blocked reader with EOF.
func TestFdTableCloseClosesUnderlyingFile(t *testing.T) {
	ft := newFdTable()
	r, w := file.NewPipe()
	rfd := ft.Alloc(r)
	wfd := ft.Alloc(w)

	result := make(chan int, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := ft.slots[rfd].File.Read(buf)
		result <- n
	}()

	time.Sleep(20 * time.Millisecond) // let the reader park
	if err := ft.Close(wfd); err != 0 {
		t.Fatalf("Close failed: %d", err)
	}

	select {
	case n := <-result:
		if n != 0 {
			t.Errorf("Read after Close(write fd) = %d, want 0 (EOF)", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closing the only write fd should have woken the blocked reader")
	}
}

// TestFdTableCloneSharesPipeRefCount covers spec.md §4.6: a forked
// child's write end is a reference to the same pipe, so closing the
// parent's copy must not signal EOF to the reader while the child's
// copy is still open.
func TestFdTableCloneSharesPipeRefCount(t *testing.T) {
	ft := newFdTable()
	r, w := file.NewPipe()
	rfd := ft.Alloc(r)
	wfd := ft.Alloc(w)

	child := ft.Clone()

	if err := ft.Close(wfd); err != 0 {
		t.Fatalf("parent Close failed: %d", err)
	}

	result := make(chan int, 1)
	go func() {
		buf := make([]byte, 4)
		n, _ := ft.slots[rfd].File.Read(buf)
		result <- n
	}()

	// the child's copy of the write end is still open, so the reader
	// must still block rather than observe EOF.
	select {
	case n := <-result:
		t.Fatalf("reader saw EOF (n=%d) while the child still holds the write end open", n)
	case <-time.After(50 * time.Millisecond):
	}

	childWfd, ok := findFd(child, w)
	if !ok {
		t.Fatal("child clone lost its copy of the write descriptor")
	}
	if err := child.Close(childWfd); err != 0 {
		t.Fatalf("child Close failed: %d", err)
	}

	select {
	case n := <-result:
		if n != 0 {
			t.Errorf("Read after last writer closed = %d, want 0 (EOF)", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("closing the last writer reference should have woken the blocked reader")
	}
}

func findFd(ft *FdTable, f file.File) (int, bool) {
	for i, s := range ft.slots {
		if s != nil && s.File == f {
			return i, true
		}
	}
	return 0, false
}
