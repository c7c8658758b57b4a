package task

import (
	"github.com/RainaX/rCore-v3/internal/disasm"
)

// FaultLog receives a formatted diagnostic line whenever LoadWord
// terminates a task for a hardware fault, letting callers route it
// through bootlog.Log without this package importing it back.
var FaultLog func(string)

// LoadWord performs a simulated user `ld` at va on behalf of t,
// implementing spec.md §8 scenario 5: a load against memory already
// released by Munmap page-faults and kills the task with exit code
// -1, exactly as a real trap handler finding no PTE would. instr
// carries the raw bytes of the faulting instruction for disasm to
// decode into the diagnostic; a hosted simulation has no real
// instruction stream, so callers synthesize these bytes (or pass nil
// for "unknown instruction").
func (t *TCB) LoadWord(va uintptr, instr []byte) (uint64, bool) {
	v, ok := t.AS.LoadU64(va)
	if ok {
		return v, true
	}
	f := disasm.Decode(va, instr)
	if FaultLog != nil {
		FaultLog("page fault: " + f.String())
	}
	t.Exit(-1)
	panic("unreachable: Exit never returns")
}

// StoreWord is LoadWord's write-side counterpart, for a simulated
// user `sd`.
func (t *TCB) StoreWord(va uintptr, v uint64, instr []byte) bool {
	if t.AS.StoreU64(va, v) {
		return true
	}
	f := disasm.Decode(va, instr)
	if FaultLog != nil {
		FaultLog("page fault: " + f.String())
	}
	t.Exit(-1)
	panic("unreachable: Exit never returns")
}
