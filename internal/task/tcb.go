// Package task implements the process model of spec.md §4.2/§4.3:
// task control blocks, fork/exec/spawn/waitpid, and the stride
// scheduler's admission loop.
//
// There is no real RISC-V hart to trap into here, so this port
// represents a task as a goroutine holding the "current execution
// context" for as long as the scheduler's stride pass says it may
// run. A task goroutine blocks on its own turn channel whenever it
// isn't the one admitted to run; Yield, Block and exiting
// (processor.go) are the only ways it gives that turn back up, Yield
// and Block standing in for a timer interrupt and a blocking trap
// respectively. This is a
// deliberate simulation of __switch's cooperative handoff
// (processor.rs) using Go's scheduler instead of assembly context
// switches.
package task

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/file"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/sched"
	"github.com/RainaX/rCore-v3/internal/trap"
	"github.com/RainaX/rCore-v3/internal/vm"
)

// Status is a task's scheduling state, ported from TaskStatus.
type Status int

const (
	Ready Status = iota
	Running
	Blocked
	Zombie
)

// TCB is a task control block: one process, one address space, one
// fd table, one slot in the stride scheduler.
type TCB struct {
	mu sync.Mutex

	Pid    defs.Pid_t
	Status Status

	AS      *vm.AddressSpace
	Fd      *FdTable
	TrapCtx *trap.Context

	Parent   *TCB
	Children []*TCB
	ExitCode int

	priority int
	block    sched.SchedBlock
	hasBlock bool

	turnCh chan struct{}

	Mailbox *file.Mailbox

	// proc lets a task wake its parent out of Waitpid's Block when it
	// exits, without threading a Processor through every call site.
	proc *Processor

	// Program is the closure this task's goroutine is running. fork
	// re-invokes it on the child (see Kernel.Fork) since a hosted
	// simulation has no register state to clone and resume the parent
	// mid-flight from; a forked program is expected to branch on
	// sys_getpid rather than on fork's return value, unlike real
	// fork(2).
	Program func(*TCB)
}

func newBareTCB(pid defs.Pid_t) *TCB {
	return &TCB{
		Pid:      pid,
		Status:   Ready,
		Fd:       newFdTable(),
		priority: config.InitPriority,
		turnCh:   make(chan struct{}),
	}
}

// SetPriority updates the task's stride-scheduler priority, taking
// effect the next time it is (re)admitted to the scheduler.
func (t *TCB) SetPriority(p int) defs.Err_t {
	if p < config.MinPriority {
		return -defs.EINVAL
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priority = p
	if t.hasBlock {
		t.block.SetPriority(p)
	}
	return 0
}

// schedBlock returns this task's SchedBlock, initializing one at its
// current priority the first time it is scheduled.
func (t *TCB) schedBlock() sched.SchedBlock {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasBlock {
		t.block = sched.SchedBlock{ID: int(t.Pid)}
		t.block.SetPriority(t.priority)
		t.hasBlock = true
	}
	return t.block
}

func (t *TCB) setSchedBlock(b sched.SchedBlock) {
	t.mu.Lock()
	t.block = b
	t.hasBlock = true
	t.mu.Unlock()
}

func (t *TCB) setStatus(s Status) {
	t.mu.Lock()
	t.Status = s
	t.mu.Unlock()
}

func (t *TCB) getStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Status
}

// addChild records child as one of t's children, used by fork/spawn.
func (t *TCB) addChild(child *TCB) {
	t.mu.Lock()
	child.Parent = t
	t.Children = append(t.Children, child)
	t.mu.Unlock()
}

// reapZombieChild removes and returns a zombie child matching pid (or
// any child if pid < 0), reporting found=false if none currently
// qualifies.
func (t *TCB) reapZombieChild(pid int) (child *TCB, found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.Children {
		if pid >= 0 && int(c.Pid) != pid {
			continue
		}
		if c.getStatus() == Zombie {
			t.Children = append(t.Children[:i], t.Children[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

// hasChild reports whether t has any live reference to pid (or any
// child at all if pid < 0), used by Waitpid to distinguish ECHILD
// from "not exited yet".
func (t *TCB) hasChild(pid int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pid < 0 {
		return len(t.Children) > 0
	}
	for _, c := range t.Children {
		if int(c.Pid) == pid {
			return true
		}
	}
	return false
}

// reparentChildrenTo moves every child of t onto newParent, used when
// t exits so its children are not orphaned — per spec.md §9,
// initproc adopts the children of any task that exits before they do.
// Already-zombie children are woken into newParent's reach immediately
// so a waitpid(-1) loop in newParent picks them up.
func (t *TCB) reparentChildrenTo(newParent *TCB) {
	t.mu.Lock()
	children := t.Children
	t.Children = nil
	t.mu.Unlock()
	if len(children) == 0 {
		return
	}
	newParent.mu.Lock()
	for _, c := range children {
		c.mu.Lock()
		c.Parent = newParent
		c.mu.Unlock()
	}
	newParent.Children = append(newParent.Children, children...)
	newParent.mu.Unlock()
	if newParent.proc == nil {
		return
	}
	for _, c := range children {
		if c.getStatus() == Zombie {
			newParent.proc.Wake(newParent)
			return
		}
	}
}

// notifyParentOnExit wakes the parent if it is currently blocked in
// Waitpid; a spurious wake (parent blocked on something else, or
// already reaped a different child) is harmless since Waitpid
// re-checks its condition in a loop before blocking again.
func (t *TCB) notifyParentOnExit() {
	if t.Parent == nil || t.Parent.proc == nil {
		return
	}
	t.Parent.proc.Wake(t.Parent)
}

// InstallStdio wires fds 0/1/2 to the console, called for the init
// process and for each spawned child; forked children inherit the
// parent's descriptors via FdTable.Clone.
func (t *TCB) InstallStdio() {
	t.Fd.Install(0, file.NewStdin())
	t.Fd.Install(1, file.NewStdout())
	t.Fd.Install(2, file.NewStderr())
}

// NewAddressSpace allocates a fresh empty address space for t from
// alloc, used by spawn/exec before loading an ELF image into it.
func (t *TCB) NewAddressSpace(alloc *mem.Allocator) defs.Err_t {
	as, err := vm.New(alloc)
	if err != 0 {
		return err
	}
	t.AS = as
	return 0
}
