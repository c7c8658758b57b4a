package sched

import "github.com/RainaX/rCore-v3/internal/config"

// stride compares two stride values under modular wraparound: if the
// numeric difference exceeds BigStride/2, the smaller value is taken
// to be the one that actually wrapped around and so sorts after the
// larger one. Ported verbatim from Stride::partial_cmp in
// stride_scheduler.rs, including returning "neither less" on exact
// equality (see strideLess below).
func strideLess(a, b uint64) bool {
	if a < b {
		return b-a <= config.BigStride/2
	}
	if a > b {
		return !(a-b <= config.BigStride/2)
	}
	return false
}

// SchedBlock is one task's position in the stride scheduler: its
// accumulated stride and the pass value set_priority derives from its
// priority, ported from SchedBlock in stride_scheduler.rs.
type SchedBlock struct {
	ID     int
	stride uint64
	pass   uint64
}

// blockLess implements SchedBlock's ordering purely in terms of
// stride, matching the ported PartialOrd impl. Per the original's
// PartialEq (always false on equal strides, an explicit tie-break
// this port preserves observably rather than "fixing" into a total
// order), two SchedBlocks with identical strides compare as neither
// less than the other in either direction.
func blockLess(a, b SchedBlock) bool { return strideLess(a.stride, b.stride) }

// SetPriority updates the pass a task accumulates per schedule,
// panicking if priority is below config.MinPriority — the syscall
// layer is responsible for validating set_priority's argument before
// calling this, matching the original's "checked in syscall module"
// comment.
func (b *SchedBlock) SetPriority(priority int) {
	if priority < config.MinPriority {
		panic("sched: invalid priority")
	}
	b.pass = config.BigStride / uint64(priority)
}

// Scheduler is a stride scheduler over admitted tasks, ported from
// StrideScheduler in stride_scheduler.rs.
type Scheduler struct {
	heap     *Heap[SchedBlock]
	popCount int64
}

// NewScheduler creates an empty stride scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{heap: NewHeap(blockLess)}
}

// InitSchedBlock admits task id at stride 0 and the default priority.
func (s *Scheduler) InitSchedBlock(id int) {
	s.heap.Insert(SchedBlock{
		ID:   id,
		pass: config.BigStride / config.InitPriority,
	})
}

// AddSchedBlock re-admits an already-initialized block, used when a
// task returns from being blocked back into the run queue.
func (s *Scheduler) AddSchedBlock(b SchedBlock) {
	s.heap.Insert(b)
}

// NextSchedBlock pops the block with minimum stride, advances its
// stride by its pass, and returns it for the caller to dispatch and
// (once it yields or blocks) reinsert via AddSchedBlock.
func (s *Scheduler) NextSchedBlock() (SchedBlock, bool) {
	b, ok := s.heap.PopMin()
	if !ok {
		return SchedBlock{}, false
	}
	b.stride += b.pass // wraps on overflow like Rust's overflowing_add
	s.popCount++
	return b, true
}

// Len reports how many tasks are currently runnable in the scheduler.
func (s *Scheduler) Len() int { return s.heap.Len() }

// PopCount reports how many times NextSchedBlock has admitted a task,
// exported through internal/kstat's pprof profile.
func (s *Scheduler) PopCount() int64 { return s.popCount }
