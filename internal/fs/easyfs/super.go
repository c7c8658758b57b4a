package easyfs

import (
	"encoding/binary"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/fs/blkcache"
)

// Superblock is the on-disk layout of block 0, per spec.md §6: magic
// and the block counts of every region. Its accessor methods follow
// the teacher's Superblock_t pattern of typed get/set pairs over a
// raw buffer (fs/super.go), rather than exposing the byte layout
// directly to callers.
type Superblock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapBlocks uint32
	InodeAreaBlocks   uint32
	DataBitmapBlocks  uint32
	DataAreaBlocks    uint32
}

const superblockSize = 4 * 6

// Encode writes the superblock fields into a 512-byte block buffer.
func (sb *Superblock) Encode() []byte {
	buf := make([]byte, superblockSize)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.TotalBlocks)
	binary.LittleEndian.PutUint32(buf[8:12], sb.InodeBitmapBlocks)
	binary.LittleEndian.PutUint32(buf[12:16], sb.InodeAreaBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], sb.DataBitmapBlocks)
	binary.LittleEndian.PutUint32(buf[20:24], sb.DataAreaBlocks)
	return buf
}

// DecodeSuperblock parses a superblock previously written by Encode.
func DecodeSuperblock(buf []byte) *Superblock {
	return &Superblock{
		Magic:             binary.LittleEndian.Uint32(buf[0:4]),
		TotalBlocks:       binary.LittleEndian.Uint32(buf[4:8]),
		InodeBitmapBlocks: binary.LittleEndian.Uint32(buf[8:12]),
		InodeAreaBlocks:   binary.LittleEndian.Uint32(buf[12:16]),
		DataBitmapBlocks:  binary.LittleEndian.Uint32(buf[16:20]),
		DataAreaBlocks:    binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// ReadSuperblock loads and validates the superblock at block 0.
func ReadSuperblock(cache *blkcache.Cache) (*Superblock, bool) {
	buf := make([]byte, superblockSize)
	cache.Get(0).Read(0, buf)
	sb := DecodeSuperblock(buf)
	return sb, sb.Magic == config.EasyFSMagic
}

// Write persists sb to block 0.
func (sb *Superblock) Write(cache *blkcache.Cache) {
	cache.Get(0).Write(0, sb.Encode())
}
