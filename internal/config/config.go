// Package config collects the tunable constants of the kernel core.
//
// The teacher kernel hardcodes these as package-level constants rather
// than reading them from a config file (limits.Syslimit, mem.PGSIZE);
// this module follows the same convention.
package config

import "time"

const (
	// PGShift is the base-2 exponent of the page size.
	PGShift = 12
	// PGSize is the size in bytes of a physical or virtual page.
	PGSize = 1 << PGShift
	// PGMask masks the in-page offset of an address.
	PGMask = PGSize - 1

	// VAWidth is the number of usable virtual address bits (SV39).
	VAWidth = 39
	// TrampolineVA is the fixed virtual address of the trampoline page,
	// shared and identically mapped across every address space.
	TrampolineVA = (1 << VAWidth) - PGSize
	// TrapContextVA sits one page below the trampoline.
	TrapContextVA = TrampolineVA - PGSize
	// UserStackTop bounds the user stack below the trap context guard.
	UserStackTop = TrapContextVA
	// UserStackSize is the default size given to a new process's stack.
	UserStackSize = 8 * PGSize
	// UserMin names the first page above the null page. No code reads
	// it: Mmap and the ELF loader accept any page-aligned address.
	UserMin = PGSize

	// MmapBase names a base address for mmap regions. No code reads
	// it: mmap always takes an explicit, caller-chosen start address.
	MmapBase = 0x10_0000_0000
	// MmapMaxLen caps a single mmap request at 1 GiB.
	MmapMaxLen = 1 << 30

	// BigStride divided by a task's priority gives its pass; stride
	// sums themselves wrap around at 2^64.
	BigStride uint64 = 1<<64 - 1
	// InitPriority is the priority newly admitted tasks start with.
	InitPriority = 16
	// MinPriority is the smallest priority set_priority will accept.
	// BigStride/MinPriority must stay <= BigStride/2 for the modular
	// comparison in the scheduler to remain correct.
	MinPriority = 2

	// MailboxCapacity is the number of message slots per mailbox.
	MailboxCapacity = 16
	// MaxMailLen bounds a single message's length in bytes.
	MaxMailLen = 256

	// BlockSize is the on-disk block size in bytes.
	BlockSize = 512
	// EasyFSMagic identifies a valid easy-fs superblock.
	EasyFSMagic uint32 = 0x3b800001
	// DirectBlocks is the number of direct block pointers per inode.
	DirectBlocks = 28
	// BitsPerBitmapBlock is the number of allocation bits one bitmap
	// block holds.
	BitsPerBitmapBlock = BlockSize * 8
	// DirEntrySize is the on-disk size of one directory entry.
	DirEntrySize = 32
	// NameLimit is the longest name (excluding the NUL) a dirent can
	// hold.
	NameLimit = DirEntrySize - 4 - 1

	// BlockCacheCapacity bounds how many buffers the block cache keeps
	// resident at once.
	BlockCacheCapacity = 16

	// DefaultFilePerm names the permission bits of a newly made file.
	// No code reads it; the kernel does not check permission bits
	// (spec Non-goals).
	DefaultFilePerm = 0o666
)

// TickInterval is the simulated timer period of trap.TimerDriver and
// of the periodic stats line, ported from the original's fixed
// timer.rs interval.
const TickInterval = 10 * time.Millisecond
