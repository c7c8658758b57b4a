package task

import (
	"testing"
	"time"
)

// TestLoadWordFaultTerminatesTask covers spec.md §8 scenario 5 end to
// end: mmap, munmap, then a load against the released range kills the
// task with exit code -1 instead of panicking or silently succeeding.
func TestLoadWordFaultTerminatesTask(t *testing.T) {
	k, root := newTestKernel(t)

	const start = uintptr(0x10000000)
	const length = 0x4000
	if err := root.AS.Mmap(start, length, 0x3); err != 0 {
		t.Fatalf("Mmap failed: %d", err)
	}
	if err := root.AS.Munmap(start, length); err != 0 {
		t.Fatalf("Munmap failed: %d", err)
	}

	k.Processor.Spawn(root, func(rootTask *TCB) {
		rootTask.LoadWord(start, nil)
		t.Error("LoadWord should not return after a page fault")
	})
	k.Manager.Add(root)

	done := make(chan struct{})
	go func() { k.Processor.Run(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Processor.Run did not finish after the faulting load")
	}

	if root.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 after a page fault", root.ExitCode)
	}
}
