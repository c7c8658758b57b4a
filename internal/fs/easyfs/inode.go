package easyfs

import (
	"encoding/binary"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/fs/blkcache"
)

// InodeType distinguishes a file from a directory, per spec.md §3.
type InodeType uint32

const (
	TypeFile InodeType = 0
	TypeDir  InodeType = 1
)

// indirectEntries is the number of u32 block pointers one indirect
// index block holds.
const indirectEntries = config.BlockSize / 4

// DiskInode is the 128-byte on-disk inode record from spec.md §6.
type DiskInode struct {
	Size      uint32
	Direct    [config.DirectBlocks]uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      InodeType
}

const DiskInodeSize = 4 + config.DirectBlocks*4 + 4 + 4 + 4

// Encode serializes the inode to its 128-byte on-disk form.
func (d *DiskInode) Encode() []byte {
	buf := make([]byte, DiskInodeSize)
	binary.LittleEndian.PutUint32(buf[0:4], d.Size)
	off := 4
	for _, b := range d.Direct {
		binary.LittleEndian.PutUint32(buf[off:off+4], b)
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], d.Indirect1)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], d.Indirect2)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(d.Type))
	return buf
}

// DecodeDiskInode parses a 128-byte on-disk inode record.
func DecodeDiskInode(buf []byte) *DiskInode {
	d := &DiskInode{}
	d.Size = binary.LittleEndian.Uint32(buf[0:4])
	off := 4
	for i := range d.Direct {
		d.Direct[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	d.Indirect1 = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	d.Indirect2 = binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4
	d.Type = InodeType(binary.LittleEndian.Uint32(buf[off : off+4]))
	return d
}

// IsDir reports whether the inode denotes a directory.
func (d *DiskInode) IsDir() bool { return d.Type == TypeDir }

// BlocksNumNeeded returns the number of data blocks needed to hold size
// bytes, per spec.md §4.5.
func BlocksNumNeeded(size uint32) uint32 {
	return (size + config.BlockSize - 1) / config.BlockSize
}

// TotalBlocks adds to BlocksNumNeeded any index blocks required to
// address that many data blocks: one indirect1 block once the direct
// pointers are exhausted, and an indirect2 root plus secondary index
// blocks once indirect1 is exhausted too.
func TotalBlocks(size uint32) uint32 {
	dataBlocks := BlocksNumNeeded(size)
	total := dataBlocks
	if dataBlocks > config.DirectBlocks {
		total++
	}
	if dataBlocks > config.DirectBlocks+indirectEntries {
		total++ // indirect2 root block
		remaining := dataBlocks - config.DirectBlocks - indirectEntries
		total += (remaining + indirectEntries - 1) / indirectEntries
	}
	return total
}

// DataBlocks returns how many data blocks (excluding index blocks)
// the inode currently owns for its size.
func (d *DiskInode) DataBlocks() uint32 { return BlocksNumNeeded(d.Size) }

// blockIDAt resolves the inner_id'th data block of the inode to an
// absolute block number on disk, walking direct, then indirect1, then
// indirect2 exactly as spec.md §4.5 describes.
func (d *DiskInode) blockIDAt(cache *blkcache.Cache, innerID uint32) uint32 {
	var scratch [4]byte
	switch {
	case innerID < config.DirectBlocks:
		return d.Direct[innerID]
	case innerID < config.DirectBlocks+indirectEntries:
		idx := innerID - config.DirectBlocks
		cache.Get(int(d.Indirect1)).Read(int(idx*4), scratch[:])
		return binary.LittleEndian.Uint32(scratch[:])
	default:
		idx := innerID - config.DirectBlocks - indirectEntries
		outer := idx / indirectEntries
		inner := idx % indirectEntries
		cache.Get(int(d.Indirect2)).Read(int(outer*4), scratch[:])
		mid := binary.LittleEndian.Uint32(scratch[:])
		cache.Get(int(mid)).Read(int(inner*4), scratch[:])
		return binary.LittleEndian.Uint32(scratch[:])
	}
}

func putU32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

// ReadAt copies min(size-offset, len(buf)) bytes starting at offset
// into buf and returns the count, per spec.md §4.5.
func (d *DiskInode) ReadAt(cache *blkcache.Cache, offset int, buf []byte) int {
	end := int(d.Size)
	if offset >= end {
		return 0
	}
	want := len(buf)
	if offset+want > end {
		want = end - offset
	}
	read := 0
	for read < want {
		innerID := uint32((offset + read) / config.BlockSize)
		blockOff := (offset + read) % config.BlockSize
		chunk := config.BlockSize - blockOff
		if chunk > want-read {
			chunk = want - read
		}
		blockID := d.blockIDAt(cache, innerID)
		cache.Get(int(blockID)).Read(blockOff, buf[read:read+chunk])
		read += chunk
	}
	return read
}

// WriteAt writes buf at offset, assuming the inode has already been
// resized (via IncreaseSize) to cover the range, per spec.md §4.5.
func (d *DiskInode) WriteAt(cache *blkcache.Cache, offset int, buf []byte) int {
	want := len(buf)
	written := 0
	for written < want {
		innerID := uint32((offset + written) / config.BlockSize)
		blockOff := (offset + written) % config.BlockSize
		chunk := config.BlockSize - blockOff
		if chunk > want-written {
			chunk = want - written
		}
		blockID := d.blockIDAt(cache, innerID)
		cache.Get(int(blockID)).Write(blockOff, buf[written:written+chunk])
		written += chunk
	}
	return written
}
