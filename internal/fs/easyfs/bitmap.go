// Package easyfs implements the on-disk layout described in spec.md
// §4.5/§6: superblock, inode and data bitmaps, inode array, data
// region. It is grounded on the teacher's fs.Superblock_t field
// accessors (fs/super.go) for the "typed view over a raw block" idiom,
// but the layout itself follows spec.md exactly rather than biscuit's
// journaling filesystem, which this kernel's Non-goals exclude.
package easyfs

import (
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/fs/blkcache"
)

// Bitmap manages allocation over a run of bitmapBlocks blocks starting
// at startBlock, each holding BitsPerBitmapBlock allocation bits.
type Bitmap struct {
	startBlock int
	numBlocks  int
}

// NewBitmap describes a bitmap region; it does not touch the cache.
func NewBitmap(startBlock, numBlocks int) *Bitmap {
	return &Bitmap{startBlock: startBlock, numBlocks: numBlocks}
}

// Alloc scans for the first zero bit across the bitmap's blocks, sets
// it, and returns its global bit index, or ok=false if the region is
// full (resource exhaustion, spec.md §4.5).
func (bm *Bitmap) Alloc(cache *blkcache.Cache) (int, bool) {
	for blk := 0; blk < bm.numBlocks; blk++ {
		buf := cache.Get(bm.startBlock + blk)
		found := -1
		buf.Modify(0, func(span []byte) {
			for byteIdx := 0; byteIdx < config.BlockSize && found < 0; byteIdx++ {
				b := span[byteIdx]
				if b == 0xff {
					continue
				}
				for bit := 0; bit < 8; bit++ {
					if b&(1<<uint(bit)) == 0 {
						span[byteIdx] = b | (1 << uint(bit))
						found = byteIdx*8 + bit
						break
					}
				}
			}
		})
		if found >= 0 {
			return blk*config.BitsPerBitmapBlock + found, true
		}
	}
	return 0, false
}

// Dealloc clears the bit identified by the global index returned by a
// prior Alloc.
func (bm *Bitmap) Dealloc(cache *blkcache.Cache, bit int) {
	blk := bit / config.BitsPerBitmapBlock
	rem := bit % config.BitsPerBitmapBlock
	byteIdx := rem / 8
	bitIdx := uint(rem % 8)
	buf := cache.Get(bm.startBlock + blk)
	buf.Modify(0, func(span []byte) {
		if span[byteIdx]&(1<<bitIdx) == 0 {
			panic("easyfs: deallocating a free bit")
		}
		span[byteIdx] &^= 1 << bitIdx
	})
}

// MaxBits returns the total number of bits this bitmap can hold.
func (bm *Bitmap) MaxBits() int { return bm.numBlocks * config.BitsPerBitmapBlock }
