package task

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/sched"
)

// Manager owns every live task and the stride scheduler's ready queue,
// ported from manager.rs's TASK_MANAGER: a pid-keyed map guarded by a
// single lock, backed by a StrideScheduler for ordering.
type Manager struct {
	mu        sync.Mutex
	ready     map[int]*TCB
	scheduler *sched.Scheduler
	all       map[int]*TCB
	pids      *pidAllocator
}

// NewManager creates an empty task manager.
func NewManager() *Manager {
	return &Manager{
		ready:     make(map[int]*TCB),
		scheduler: sched.NewScheduler(),
		all:       make(map[int]*TCB),
		pids:      newPidAllocator(),
	}
}

// NewTask allocates a pid and a bare TCB, registering it in the
// all-tasks table but not yet in the ready queue.
func (m *Manager) NewTask() *TCB {
	pid := m.pids.alloc()
	t := newBareTCB(defs.Pid_t(pid))
	m.mu.Lock()
	m.all[pid] = t
	m.mu.Unlock()
	return t
}

// Add admits t to the ready queue, initializing its SchedBlock at its
// current priority if it doesn't have one yet (first admission) or
// re-inserting its existing one (returning from being descheduled),
// matching TaskManager::add.
func (m *Manager) Add(t *TCB) {
	block := t.schedBlock()
	t.setStatus(Ready)
	m.mu.Lock()
	m.ready[int(t.Pid)] = t
	m.scheduler.AddSchedBlock(block)
	m.mu.Unlock()
}

// Fetch pops the next task to run by stride order, ported from
// TaskManager::fetch.
func (m *Manager) Fetch() (*TCB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nb, ok := m.scheduler.NextSchedBlock()
	if !ok {
		return nil, false
	}
	t, ok := m.ready[nb.ID]
	if !ok {
		return nil, false
	}
	delete(m.ready, nb.ID)
	t.setSchedBlock(nb)
	return t, true
}

// Lookup finds a task by pid regardless of its current scheduling
// state.
func (m *Manager) Lookup(pid int) (*TCB, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.all[pid]
	return t, ok
}

// Remove drops a fully-reaped task from the all-tasks table and
// recycles its pid.
func (m *Manager) Remove(pid int) {
	m.mu.Lock()
	delete(m.all, pid)
	m.mu.Unlock()
	m.pids.dealloc(pid)
}

// Len reports how many tasks are currently ready to run.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready)
}

// SchedPops reports how many admission decisions the scheduler has
// made, exported through internal/kstat's pprof profile.
func (m *Manager) SchedPops() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduler.PopCount()
}
