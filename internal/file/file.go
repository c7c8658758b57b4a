// Package file implements the unified file-descriptor-table contract
// of spec.md §4.6: every kind of open file (pipe end, mailbox,
// console stream, filesystem inode) satisfies the same File interface,
// grounded on the teacher's Disk_i/Block_cb_i style of small
// capability interfaces (fs/blk.go) applied here to the open-file
// abstraction rather than the block layer.
package file

import "github.com/RainaX/rCore-v3/internal/defs"

// File is the capability every fd table slot holds. Read and Write
// return the byte count actually transferred and an error.
type File interface {
	Readable() bool
	Writable() bool
	Read(buf []byte) (int, defs.Err_t)
	Write(buf []byte) (int, defs.Err_t)
	Fstat() (Stat, defs.Err_t)
	Close()
}

// RefCounted is implemented by File values whose Close only takes
// effect once every descriptor-table slot referencing them has also
// closed — pipe ends shared across dup(2) and fork. FdTable calls
// addRef whenever it duplicates such a value into another slot.
type RefCounted interface {
	addRef()
}

// FileType distinguishes what Fstat reports, matching vfs.FileType's
// values so inode-backed files can pass theirs straight through.
type FileType int

const (
	TypeFile FileType = iota
	TypeDir
	TypeCharDevice
	TypePipe
)

// POSIX S_IFMT-style mode bits for Stat.Mode. Only DIR and FILE are
// named by spec.md §6; the rest follow the same convention for the
// file kinds the spec leaves unspecified.
const (
	ModeFile = 0o100000
	ModeDir  = 0o040000
	ModeChar = 0o020000
	ModeFIFO = 0o010000
)

// modeFor maps a FileType to its Stat.Mode value.
func modeFor(t FileType) uint32 {
	switch t {
	case TypeDir:
		return ModeDir
	case TypeCharDevice:
		return ModeChar
	case TypePipe:
		return ModeFIFO
	default:
		return ModeFile
	}
}

// Stat is the fstat(2) payload from spec.md §6. Dev is always 0: every
// open file in this kernel lives on the single mounted filesystem.
type Stat struct {
	Dev     uint64
	InodeID uint32
	Type    FileType
	Mode    uint32
	Size    uint32
	Nlink   uint32
}

// NewStat builds a Stat with Mode derived from typ, so call sites never
// hand-roll the POSIX mode bits themselves.
func NewStat(typ FileType, inodeID, size, nlink uint32) Stat {
	return Stat{InodeID: inodeID, Type: typ, Mode: modeFor(typ), Size: size, Nlink: nlink}
}
