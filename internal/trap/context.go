package trap

import "encoding/binary"

// Context is the saved trap frame, ported from TrapContext
// (trap/context.rs): the 32 general registers plus sstatus/sepc and
// the three fields __alltraps/__restore need to get into and out of
// kernel mode. This kernel never actually executes a trap instruction
// (there is no hart to trap on), but AddressSpace still maps a page
// for it at config.TrapContextVA so the memory-management subsystem
// exercises the exact layout a real trap handler would read.
type Context struct {
	X           [32]uint64
	Sstatus     uint64
	Sepc        uint64
	KernelSatp  uint64
	KernelSP    uint64
	TrapHandler uint64
}

const Size = (32 + 5) * 8

// Encode serializes the context to its on-disk/in-memory byte layout.
func (c *Context) Encode() []byte {
	buf := make([]byte, Size)
	for i, r := range c.X {
		binary.LittleEndian.PutUint64(buf[i*8:], r)
	}
	off := 32 * 8
	binary.LittleEndian.PutUint64(buf[off:], c.Sstatus)
	binary.LittleEndian.PutUint64(buf[off+8:], c.Sepc)
	binary.LittleEndian.PutUint64(buf[off+16:], c.KernelSatp)
	binary.LittleEndian.PutUint64(buf[off+24:], c.KernelSP)
	binary.LittleEndian.PutUint64(buf[off+32:], c.TrapHandler)
	return buf
}

// DecodeContext parses a trap context previously written by Encode.
func DecodeContext(buf []byte) *Context {
	c := &Context{}
	for i := range c.X {
		c.X[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	off := 32 * 8
	c.Sstatus = binary.LittleEndian.Uint64(buf[off:])
	c.Sepc = binary.LittleEndian.Uint64(buf[off+8:])
	c.KernelSatp = binary.LittleEndian.Uint64(buf[off+16:])
	c.KernelSP = binary.LittleEndian.Uint64(buf[off+24:])
	c.TrapHandler = binary.LittleEndian.Uint64(buf[off+32:])
	return c
}

// AppInit builds the initial trap context for a freshly loaded user
// program: entry point in sepc, user stack pointer in x[2] (sp), and
// the kernel-side bookkeeping fields a real __restore would need.
func AppInit(entry, userSP, kernelSatp, kernelSP, trapHandler uint64) *Context {
	c := &Context{Sepc: entry, KernelSatp: kernelSatp, KernelSP: kernelSP, TrapHandler: trapHandler}
	c.X[2] = userSP
	return c
}
