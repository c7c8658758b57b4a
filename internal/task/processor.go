package task

// Processor drives the single-hart admission loop, ported from
// processor.rs's Processor/run: repeatedly fetch the next task by
// stride order and grant it the turn, then wait for it to give the
// turn back (by yielding, blocking, or exiting) before fetching the
// next one.
type Processor struct {
	mgr      *Manager
	yieldCh  chan yieldEvent
	initProc *TCB
}

type yieldKind int

const (
	evYield yieldKind = iota
	evBlock
	evExit
)

type yieldEvent struct {
	kind yieldKind
	task *TCB
}

// NewProcessor creates a processor driving mgr's ready queue.
func NewProcessor(mgr *Manager) *Processor {
	return &Processor{mgr: mgr, yieldCh: make(chan yieldEvent)}
}

// SetInitProc designates t as the adopter of any task's children left
// orphaned by exit, per spec.md §9. Must be called once, before any
// task can exit with live children.
func (p *Processor) SetInitProc(t *TCB) { p.initProc = t }

// Run grants the turn to tasks in stride order until the ready queue
// runs dry. It returns once there is nothing left to schedule, the
// same "All applications completed!" condition mod.rs treats as
// fatal; here it is just the natural end of a finite test run, so
// Run returns instead of panicking.
func (p *Processor) Run() {
	for {
		t, ok := p.mgr.Fetch()
		if !ok {
			return
		}
		t.setStatus(Running)
		t.turnCh <- struct{}{}
		ev := <-p.yieldCh
		switch ev.kind {
		case evYield:
			p.mgr.Add(ev.task)
		case evBlock:
			ev.task.setStatus(Blocked)
			// The task is responsible for re-admitting itself (via
			// Wake) once whatever it is blocked on is satisfied.
		case evExit:
			// Nothing further to schedule for this task; Exit already
			// finalized its Zombie state before reporting here.
		}
	}
}

// exitSignal unwinds a task's goroutine stack when it calls Exit,
// the way os.Exit would if Go let user code intercept it; Spawn's
// wrapper recovers it and treats it as the normal end of the task.
type exitSignal struct{ code int }

// Spawn starts t's program body on its own goroutine, parked waiting
// for its first turn. body receives t and runs until it returns or
// calls t.Exit (which unwinds the goroutine via panic/recover), at
// which point the processor is told the task is done.
func (p *Processor) Spawn(t *TCB, body func(*TCB)) {
	t.Program = body
	go func() {
		<-t.turnCh
		func() {
			defer func() {
				if r := recover(); r != nil {
					sig, ok := r.(exitSignal)
					if !ok {
						panic(r)
					}
					t.mu.Lock()
					t.ExitCode = sig.code
					t.mu.Unlock()
				}
			}()
			body(t)
		}()
		t.Fd.CloseAll()
		t.mu.Lock()
		t.Status = Zombie
		t.mu.Unlock()
		if p.initProc != nil && t != p.initProc {
			t.reparentChildrenTo(p.initProc)
		}
		t.notifyParentOnExit()
		p.yieldCh <- yieldEvent{kind: evExit, task: t}
	}()
}

// Yield gives up the current turn cooperatively and blocks until the
// processor grants t another one, simulating sys_yield.
func (p *Processor) Yield(t *TCB) {
	p.yieldCh <- yieldEvent{kind: evYield, task: t}
	<-t.turnCh
}

// Block gives up the current turn because t cannot make progress
// (e.g. waitpid with no reapable child yet). t is not re-admitted to
// the ready queue; some other task must call Wake(t) once the
// condition t is waiting on is satisfied.
func (p *Processor) Block(t *TCB) {
	p.yieldCh <- yieldEvent{kind: evBlock, task: t}
	<-t.turnCh
}

// Wake re-admits a previously Block'd task to the ready queue.
func (p *Processor) Wake(t *TCB) {
	if t.getStatus() == Blocked {
		p.mgr.Add(t)
	}
}

// Exit unwinds the calling task's goroutine immediately, recording
// code as its exit status, implementing sys_exit's "never returns"
// contract.
func (t *TCB) Exit(code int) {
	panic(exitSignal{code: code})
}
