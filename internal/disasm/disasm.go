// Package disasm decodes the faulting instruction at a trap site for
// diagnostic output, the RISC-V analogue of the teacher's x86
// instruction-bytes-in-panic-message convention (trap.go's use of the
// raw opcode bytes when a page fault can't be serviced).
package disasm

import (
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// Fault describes one disassembled faulting instruction, formatted
// for inclusion in a kind-4 (hardware fault) diagnostic per spec.md §7.
type Fault struct {
	Addr uintptr
	Len  int
	Text string
}

// Decode disassembles the instruction at code[0:], reporting addr as
// its virtual address for display. If the bytes don't decode to a
// valid instruction (a common symptom of jumping into unmapped or
// corrupted memory), Text carries the raw hex instead of panicking —
// the decode failure is itself part of the diagnostic.
func Decode(addr uintptr, code []byte) Fault {
	inst, err := riscv64asm.Decode(code)
	if err != nil {
		return Fault{
			Addr: addr,
			Len:  0,
			Text: fmt.Sprintf("<bad instruction: % x>", firstBytes(code, 4)),
		}
	}
	return Fault{
		Addr: addr,
		Len:  inst.Len,
		Text: inst.String(),
	}
}

// String formats a fault the way the teacher's panic paths print a
// faulting RIP/instruction pair.
func (f Fault) String() string {
	return fmt.Sprintf("%#x: %s", f.Addr, f.Text)
}

func firstBytes(b []byte, n int) []byte {
	if len(b) < n {
		return b
	}
	return b[:n]
}
