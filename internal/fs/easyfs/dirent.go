package easyfs

import (
	"bytes"
	"encoding/binary"

	"github.com/RainaX/rCore-v3/internal/config"
)

// DirEntry is the fixed 32-byte directory record from spec.md §6: a
// NUL-terminated name (27 usable bytes) followed by a uint32 inode
// number.
type DirEntry struct {
	Name    string
	InodeID uint32
}

const DirEntrySize = config.DirEntrySize

// nameFieldSize is the on-disk width of the name field (NameLimit
// usable bytes plus a terminating NUL); the remaining 4 bytes hold the
// inode number.
const nameFieldSize = DirEntrySize - 4

// Encode serializes the entry to its 32-byte on-disk form. e.Name must
// fit within config.NameLimit bytes.
func (e *DirEntry) Encode() []byte {
	buf := make([]byte, DirEntrySize)
	copy(buf[:nameFieldSize], e.Name)
	binary.LittleEndian.PutUint32(buf[nameFieldSize:], e.InodeID)
	return buf
}

// DecodeDirEntry parses a 32-byte on-disk directory record.
func DecodeDirEntry(buf []byte) *DirEntry {
	nameBytes := buf[:nameFieldSize]
	if i := bytes.IndexByte(nameBytes, 0); i >= 0 {
		nameBytes = nameBytes[:i]
	}
	return &DirEntry{
		Name:    string(nameBytes),
		InodeID: binary.LittleEndian.Uint32(buf[nameFieldSize:]),
	}
}
