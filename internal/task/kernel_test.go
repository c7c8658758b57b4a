package task

import (
	"testing"
	"time"

	"github.com/RainaX/rCore-v3/internal/mem"
)

func newTestKernel(t *testing.T) (*Kernel, *TCB) {
	t.Helper()
	alloc := mem.NewAllocator(0, 256)
	trampoline, ok := alloc.Alloc()
	if !ok {
		t.Fatal("failed to allocate trampoline frame")
	}
	mgr := NewManager()
	proc := NewProcessor(mgr)
	k := &Kernel{Alloc: alloc, Trampoline: trampoline.Frame(), Manager: mgr, Processor: proc}

	root := k.NewTask()
	root.InstallStdio()
	if err := root.NewAddressSpace(alloc); err != 0 {
		t.Fatalf("NewAddressSpace failed: %d", err)
	}
	proc.SetInitProc(root)
	return k, root
}

// TestForkWaitpidReturnsChildPid exercises spec.md's Testable
// Properties: fork() followed by waitpid(child, &c) returns the
// child's pid and its exit code.
func TestForkWaitpidReturnsChildPid(t *testing.T) {
	k, root := newTestKernel(t)

	var childPid int
	k.Processor.Spawn(root, func(rootTask *TCB) {
		child, err := k.Fork(rootTask, func(c *TCB) {
			c.Exit(7)
		})
		if err != 0 {
			t.Errorf("Fork failed: %d", err)
			rootTask.Exit(0)
			return
		}
		childPid = int(child.Pid)

		reaped, code, werr := k.Waitpid(rootTask, childPid)
		if werr != 0 {
			t.Errorf("Waitpid failed: %d", werr)
		}
		if reaped != childPid {
			t.Errorf("Waitpid reaped pid %d, want %d", reaped, childPid)
		}
		if code != 7 {
			t.Errorf("Waitpid exit code = %d, want 7", code)
		}
		rootTask.Exit(0)
	})
	k.Manager.Add(root)

	done := make(chan struct{})
	go func() { k.Processor.Run(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor.Run did not finish: fork/waitpid likely deadlocked")
	}
}

// TestWaitpidNoChildFailsImmediately covers spec.md §4's −1 "no
// matching child" case.
func TestWaitpidNoChildFailsImmediately(t *testing.T) {
	k, root := newTestKernel(t)

	k.Processor.Spawn(root, func(rootTask *TCB) {
		_, _, err := k.Waitpid(rootTask, 999)
		if err == 0 {
			t.Error("Waitpid on a nonexistent child should fail")
		}
		rootTask.Exit(0)
	})
	k.Manager.Add(root)

	done := make(chan struct{})
	go func() { k.Processor.Run(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor.Run did not finish")
	}
}

// TestOrphanReparenting covers spec.md §8 scenario 6: a task that
// exits while it still has live children hands them off to initproc,
// which can subsequently reap them.
func TestOrphanReparenting(t *testing.T) {
	k, root := newTestKernel(t)

	reapedByInit := make(chan int, 1)
	k.Processor.Spawn(root, func(rootTask *TCB) {
		mid, err := k.Fork(rootTask, func(m *TCB) {
			// mid forks a grandchild, then exits immediately without
			// waiting for it — the grandchild must be reparented to
			// root (the designated initproc), not leaked.
			_, ferr := k.Fork(m, func(g *TCB) {
				g.Exit(3)
			})
			if ferr != 0 {
				t.Errorf("grandchild fork failed: %d", ferr)
			}
			m.Exit(0)
		})
		if err != 0 {
			t.Fatalf("mid fork failed: %d", err)
		}

		if _, _, werr := k.Waitpid(rootTask, int(mid.Pid)); werr != 0 {
			t.Errorf("Waitpid(mid) failed: %d", werr)
		}

		// The grandchild is now root's child by reparenting; reap it
		// with a wildcard wait.
		reaped, _, werr := k.Waitpid(rootTask, -1)
		if werr != 0 {
			t.Errorf("Waitpid(-1) for reparented grandchild failed: %d", werr)
		}
		reapedByInit <- reaped
		rootTask.Exit(0)
	})
	k.Manager.Add(root)

	done := make(chan struct{})
	go func() { k.Processor.Run(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor.Run did not finish: orphan reparenting likely broken")
	}

	select {
	case pid := <-reapedByInit:
		if pid <= 0 {
			t.Errorf("reaped invalid pid %d", pid)
		}
	default:
		t.Error("initproc never reaped the reparented grandchild")
	}
}
