package vm

import (
	"bytes"
	"debug/elf"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/pagetable"
)

// The teacher's kernel/chentry.go tool parses ELF headers with the
// standard library's debug/elf to patch an entry point at build time;
// this loader uses the same package to parse PT_LOAD segments at
// process-creation time, targeting RISC-V64 executables instead of
// x86-64 ones.

// Image is a parsed, loadable executable image.
type Image struct {
	Entry   uintptr
	segs    []segment
}

type segment struct {
	vaddr uintptr
	data  []byte
	memsz uintptr
	perm  pagetable.Flag
}

// ParseImage parses a little-endian 64-bit RISC-V ET_EXEC ELF image,
// honoring only PT_LOAD segments per spec.md §6.
func ParseImage(raw []byte) (*Image, defs.Err_t) {
	ef, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, -defs.ENOEXEC
	}
	defer ef.Close()
	if ef.Class != elf.ELFCLASS64 || ef.Data != elf.ELFDATA2LSB {
		return nil, -defs.ENOEXEC
	}
	img := &Image{Entry: uintptr(ef.Entry)}
	for _, p := range ef.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, p.Filesz)
		r := p.Open()
		if _, err := r.Read(data); err != nil && p.Filesz > 0 {
			return nil, -defs.ENOEXEC
		}
		var perm pagetable.Flag = pagetable.U
		if p.Flags&elf.PF_R != 0 {
			perm |= pagetable.R
		}
		if p.Flags&elf.PF_W != 0 {
			perm |= pagetable.W
		}
		if p.Flags&elf.PF_X != 0 {
			perm |= pagetable.X
		}
		img.segs = append(img.segs, segment{
			vaddr: uintptr(p.Vaddr),
			data:  data,
			memsz: uintptr(p.Memsz),
			perm:  perm,
		})
	}
	return img, 0
}

// Load maps every PT_LOAD segment of img into as, then appends a user
// stack and the trap-context/trampoline pages, returning the initial
// stack pointer to seed into the trap context.
func Load(as *AddressSpace, img *Image, trampoline mem.Frame) (userSP uintptr, err defs.Err_t) {
	for _, s := range img.segs {
		start := s.vaddr &^ uintptr(config.PGMask)
		end := (s.vaddr + s.memsz + uintptr(config.PGMask)) &^ uintptr(config.PGMask)
		if end == start {
			end = start + config.PGSize
		}
		if e := as.InsertFramedArea(start, end, s.perm); e != 0 {
			return 0, e
		}
		a, _ := as.areas.find(pagetable.VPN(start>>config.PGShift), pagetable.VPN(end>>config.PGShift))
		// copyBytesFrom works in page-aligned units starting at
		// a.Start; adjust the destination offset for the segment's
		// in-page start.
		inPageOff := s.vaddr - start
		padded := make([]byte, inPageOff)
		a.copyBytesFrom(append(padded, s.data...))
	}

	stackTop := uintptr(config.UserStackTop)
	stackBottom := stackTop - config.UserStackSize
	if e := as.InsertFramedArea(stackBottom, stackTop, pagetable.R|pagetable.W|pagetable.U); e != 0 {
		return 0, e
	}
	if e := as.MapTrapContext(); e != 0 {
		return 0, e
	}
	as.MapTrampoline(trampoline)
	return stackTop, 0
}

// PushArgv writes argv onto the user stack below sp, in the layout the
// original rCore syscall/process.rs exec() uses: each string copied in
// (NUL-terminated) from high to low addresses, followed by a
// NUL-terminated array of pointers to those strings, 8-byte aligned.
// It returns the new stack pointer and the address of the pointer
// array (the value exec seeds into a1).
func PushArgv(as *AddressSpace, sp uintptr, argv [][]byte) (newSP, argvVA uintptr, err defs.Err_t) {
	ptrs := make([]uintptr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		sp -= uintptr(len(s) + 1)
		buf := make([]byte, len(s)+1)
		copy(buf, s)
		if e := as.Table.CopyOut(sp, buf); e != 0 {
			return 0, 0, e
		}
		ptrs[i] = sp
	}
	// align down to 8 bytes before the pointer array
	sp &^= 7
	sp -= uintptr(len(ptrs)+1) * 8
	sp &^= 7
	argvVA = sp
	for i, p := range ptrs {
		b := make([]byte, 8)
		for j := 0; j < 8; j++ {
			b[j] = byte(p >> (8 * j))
		}
		if e := as.Table.CopyOut(sp+uintptr(i)*8, b); e != 0 {
			return 0, 0, e
		}
	}
	zero := make([]byte, 8)
	if e := as.Table.CopyOut(sp+uintptr(len(ptrs))*8, zero); e != 0 {
		return 0, 0, e
	}
	return sp, argvVA, 0
}
