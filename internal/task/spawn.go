package task

import (
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/trap"
	"github.com/RainaX/rCore-v3/internal/vm"
)

// Kernel bundles the resources fork/exec/spawn need beyond the task
// itself: the frame allocator and the shared trampoline frame every
// address space maps at the same fixed virtual address.
type Kernel struct {
	Alloc      *mem.Allocator
	Trampoline mem.Frame
	Manager    *Manager
	Processor  *Processor
}

// NewTask allocates a task wired to this kernel's processor, so it
// can be woken out of Waitpid by its children.
func (k *Kernel) NewTask() *TCB {
	t := k.Manager.NewTask()
	t.proc = k.Processor
	return t
}

// installTrapContext builds the initial saved-register frame for a
// task about to run at entry with stack pointer sp, and writes it
// into the task's trap-context page. KernelSatp/KernelSP/TrapHandler
// are left zero: a hosted simulation has no kernel-side SV39 table or
// assembly __alltraps/__restore routine to point them at, since Go's
// own call stack plays that role instead. The fields stay part of the
// encoded layout purely so the memory-management subsystem exercises
// the exact byte shape a real trap handler would read.
func installTrapContext(t *TCB, as *vm.AddressSpace, entry, sp uintptr) {
	ctx := trap.AppInit(uint64(entry), uint64(sp), 0, 0, 0)
	copy(as.TrapContextBytes(), ctx.Encode())
	t.TrapCtx = ctx
}

// Fork creates a child of parent with an eager copy of its address
// space (spec.md §4.3 explicitly rejects copy-on-write) and a cloned
// fd table, admits it to the scheduler, and returns the child's TCB.
// The child's goroutine runs the caller-supplied childBody from its
// start; sysFork passes the parent's own Program, so a forked program
// tells parent and child apart by sys_getpid (see TCB.Program).
func (k *Kernel) Fork(parent *TCB, childBody func(*TCB)) (*TCB, defs.Err_t) {
	childAS, err := vm.FromExistedUser(parent.AS, k.Alloc)
	if err != 0 {
		return nil, err
	}
	child := k.NewTask()
	child.AS = childAS
	child.Fd = parent.Fd.Clone()
	child.SetPriority(parent.priority)
	parent.addChild(child)
	k.Processor.Spawn(child, childBody)
	k.Manager.Add(child)
	return child, 0
}

// ExecImage replaces t's address space with a freshly loaded ELF
// image and argv, per spec.md §4.3's exec contract: same pid, same
// parent/children, same open fd table, new memory and entry point.
// It writes the new trap context itself (entry, stack pointer, and
// argc/argv in a0/a1) and also returns the entry point and initial
// stack pointer.
func (k *Kernel) ExecImage(t *TCB, raw []byte, argv [][]byte) (entry, sp uintptr, err defs.Err_t) {
	img, err := vm.ParseImage(raw)
	if err != 0 {
		return 0, 0, err
	}
	as, err := vm.New(k.Alloc)
	if err != 0 {
		return 0, 0, err
	}
	stackTop, err := vm.Load(as, img, k.Trampoline)
	if err != 0 {
		return 0, 0, err
	}
	newSP, argvVA, err := vm.PushArgv(as, stackTop, argv)
	if err != 0 {
		return 0, 0, err
	}
	t.AS = as
	t.Fd.CloseExecAll()
	installTrapContext(t, as, img.Entry, newSP)
	t.TrapCtx.X[10] = uint64(len(argv))
	t.TrapCtx.X[11] = uint64(argvVA)
	copy(as.TrapContextBytes(), t.TrapCtx.Encode())
	return img.Entry, newSP, 0
}

// Spawn creates a brand-new child of parent loaded from raw/argv
// directly, without an intervening fork, matching spec.md §4.3's
// sys_spawn (the rCore-tutorial shortcut that skips the eager address
// space copy fork would otherwise require only to discard it on the
// immediate exec).
func (k *Kernel) Spawn(parent *TCB, raw []byte, argv [][]byte, body func(*TCB, uintptr, uintptr)) (*TCB, defs.Err_t) {
	img, err := vm.ParseImage(raw)
	if err != 0 {
		return nil, err
	}
	as, err := vm.New(k.Alloc)
	if err != 0 {
		return nil, err
	}
	stackTop, err := vm.Load(as, img, k.Trampoline)
	if err != 0 {
		return nil, err
	}
	sp, _, err := vm.PushArgv(as, stackTop, argv)
	if err != 0 {
		return nil, err
	}

	child := k.NewTask()
	child.AS = as
	child.InstallStdio()
	installTrapContext(child, as, img.Entry, sp)
	parent.addChild(child)
	k.Processor.Spawn(child, func(t *TCB) { body(t, img.Entry, sp) })
	k.Manager.Add(child)
	return child, 0
}

// Waitpid blocks t until a child matching pid (or any child, pid<0)
// becomes a zombie, then reaps it and returns its pid and exit code.
// Returns ECHILD immediately if t has no matching child at all.
func (k *Kernel) Waitpid(t *TCB, pid int) (reapedPid int, exitCode int, err defs.Err_t) {
	for {
		if child, ok := t.reapZombieChild(pid); ok {
			k.Manager.Remove(int(child.Pid))
			return int(child.Pid), child.ExitCode, 0
		}
		if !t.hasChild(pid) {
			return 0, 0, -defs.ECHILD
		}
		// Parked off the run queue until a child's exit calls
		// notifyParentOnExit, which re-admits t via Processor.Wake.
		// Block returns once t has been granted a turn again, at
		// which point the loop re-checks for a reapable child;
		// a spurious wake just loops back around to Block once more.
		k.Processor.Block(t)
	}
}
