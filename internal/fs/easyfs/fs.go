package easyfs

import (
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/fs/blkcache"
)

const inodesPerBlock = config.BlockSize / DiskInodeSize

// FileSystem is the mounted easy-fs layout: superblock, the two
// bitmaps, and the geometry needed to translate inode numbers and
// data-block indices into absolute block numbers, per spec.md §4.5.
type FileSystem struct {
	cache          *blkcache.Cache
	sb             *Superblock
	inodeBitmap    *Bitmap
	dataBitmap     *Bitmap
	inodeAreaStart uint32
	dataAreaStart  uint32
}

// Create formats a fresh filesystem of totalBlocks blocks, reserving
// inodeBitmapBlocks blocks for the inode bitmap; the inode area,
// data bitmap and data area are sized from there, matching the
// standard easy-fs layout (block 0 superblock, then inode bitmap,
// inode area, data bitmap, data area).
func Create(cache *blkcache.Cache, totalBlocks, inodeBitmapBlocks uint32) *FileSystem {
	inodeBitmap := NewBitmap(1, int(inodeBitmapBlocks))
	inodeNum := uint32(inodeBitmap.MaxBits())
	inodeAreaBlocks := (inodeNum*uint32(DiskInodeSize) + config.BlockSize - 1) / config.BlockSize
	inodeTotalBlocks := inodeBitmapBlocks + inodeAreaBlocks

	dataTotalBlocks := totalBlocks - 1 - inodeTotalBlocks
	// one data bitmap block (4096 bits) per 4096 data blocks, plus the
	// bitmap block itself
	dataBitmapBlocks := (dataTotalBlocks + config.BitsPerBitmapBlock) / (config.BitsPerBitmapBlock + 1)
	dataAreaBlocks := dataTotalBlocks - dataBitmapBlocks

	dataBitmapStart := 1 + inodeTotalBlocks
	dataAreaStart := dataBitmapStart + dataBitmapBlocks

	fs := &FileSystem{
		cache:          cache,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     NewBitmap(int(dataBitmapStart), int(dataBitmapBlocks)),
		inodeAreaStart: 1 + inodeBitmapBlocks,
		dataAreaStart:  dataAreaStart,
		sb: &Superblock{
			Magic:             config.EasyFSMagic,
			TotalBlocks:       totalBlocks,
			InodeBitmapBlocks: inodeBitmapBlocks,
			InodeAreaBlocks:   inodeAreaBlocks,
			DataBitmapBlocks:  dataBitmapBlocks,
			DataAreaBlocks:    dataAreaBlocks,
		},
	}
	// zero every bitmap block, then write the superblock
	for i := uint32(0); i < inodeBitmapBlocks; i++ {
		cache.Get(int(1 + i)).Write(0, make([]byte, config.BlockSize))
	}
	for i := uint32(0); i < dataBitmapBlocks; i++ {
		cache.Get(int(dataBitmapStart + i)).Write(0, make([]byte, config.BlockSize))
	}
	fs.sb.Write(cache)

	// root inode, always inode 0: allocate and initialize as a
	// directory.
	rootID, ok := fs.AllocInode()
	if !ok || rootID != 0 {
		panic("easyfs: root inode must be id 0")
	}
	fs.SetDiskInode(rootID, &DiskInode{Type: TypeDir})
	return fs
}

// Open mounts an already-formatted filesystem by reading its
// superblock.
func Open(cache *blkcache.Cache) (*FileSystem, bool) {
	sb, ok := ReadSuperblock(cache)
	if !ok {
		return nil, false
	}
	inodeAreaStart := 1 + sb.InodeBitmapBlocks
	dataBitmapStart := inodeAreaStart + sb.InodeAreaBlocks
	dataAreaStart := dataBitmapStart + sb.DataBitmapBlocks
	return &FileSystem{
		cache:          cache,
		sb:             sb,
		inodeBitmap:    NewBitmap(1, int(sb.InodeBitmapBlocks)),
		dataBitmap:     NewBitmap(int(dataBitmapStart), int(sb.DataBitmapBlocks)),
		inodeAreaStart: inodeAreaStart,
		dataAreaStart:  dataAreaStart,
	}, true
}

// RootInodeID is always 0, fixed at format time.
const RootInodeID = 0

// Cache exposes the underlying block cache, used by vfs to read/write
// directory contents directly.
func (fs *FileSystem) Cache() *blkcache.Cache { return fs.cache }

// AllocInode reserves the next free inode number.
func (fs *FileSystem) AllocInode() (uint32, bool) {
	id, ok := fs.inodeBitmap.Alloc(fs.cache)
	return uint32(id), ok
}

// AllocData reserves the next free data block and returns its
// absolute block number.
func (fs *FileSystem) AllocData() (uint32, bool) {
	id, ok := fs.dataBitmap.Alloc(fs.cache)
	if !ok {
		return 0, false
	}
	return fs.dataAreaStart + uint32(id), true
}

// DeallocData returns an absolute data block number to the free pool,
// zeroing it first so it "appears empty" to its next owner.
func (fs *FileSystem) DeallocData(blockID uint32) {
	fs.cache.Get(int(blockID)).Write(0, make([]byte, config.BlockSize))
	fs.dataBitmap.Dealloc(fs.cache, int(blockID-fs.dataAreaStart))
}

// inodePos returns the (block, offset) of inode id's on-disk record.
func (fs *FileSystem) inodePos(id uint32) (block uint32, offset int) {
	block = fs.inodeAreaStart + id/inodesPerBlock
	offset = int(id%inodesPerBlock) * DiskInodeSize
	return
}

// GetDiskInode reads inode id's on-disk record.
func (fs *FileSystem) GetDiskInode(id uint32) *DiskInode {
	block, off := fs.inodePos(id)
	buf := make([]byte, DiskInodeSize)
	fs.cache.Get(int(block)).Read(off, buf)
	return DecodeDiskInode(buf)
}

// SetDiskInode persists d as inode id's on-disk record.
func (fs *FileSystem) SetDiskInode(id uint32, d *DiskInode) {
	block, off := fs.inodePos(id)
	fs.cache.Get(int(block)).Write(off, d.Encode())
}

// IncreaseSize grows inode id's DiskInode to newSize: it allocates the
// additional data blocks BlocksNumNeeded requires, extends the index
// structures to address them, and updates Size, per spec.md §4.5.
func (fs *FileSystem) IncreaseSize(id uint32, newSize uint32) bool {
	d := fs.GetDiskInode(id)
	if newSize <= d.Size {
		d.Size = newSize
		fs.SetDiskInode(id, d)
		return true
	}
	oldBlocks := d.DataBlocks()
	d.Size = newSize
	newBlocks := d.DataBlocks()

	var newDataIDs []uint32
	for i := oldBlocks; i < newBlocks; i++ {
		bid, ok := fs.AllocData()
		if !ok {
			return false
		}
		newDataIDs = append(newDataIDs, bid)
	}

	for _, bid := range newDataIDs {
		innerID := oldBlocks
		oldBlocks++
		fs.setBlockIDAt(d, innerID, bid)
	}
	fs.SetDiskInode(id, d)
	return true
}

// setBlockIDAt installs blockID as the innerID'th data block pointer
// of d, allocating index blocks (indirect1/indirect2) as needed.
func (fs *FileSystem) setBlockIDAt(d *DiskInode, innerID uint32, blockID uint32) {
	switch {
	case innerID < config.DirectBlocks:
		d.Direct[innerID] = blockID
	case innerID < config.DirectBlocks+indirectEntries:
		if d.Indirect1 == 0 {
			bid, ok := fs.AllocData()
			if !ok {
				panic("easyfs: out of data blocks extending indirect1")
			}
			d.Indirect1 = bid
		}
		idx := innerID - config.DirectBlocks
		var scratch [4]byte
		putU32(scratch[:], blockID)
		fs.cache.Get(int(d.Indirect1)).Write(int(idx*4), scratch[:])
	default:
		if d.Indirect2 == 0 {
			bid, ok := fs.AllocData()
			if !ok {
				panic("easyfs: out of data blocks extending indirect2")
			}
			d.Indirect2 = bid
		}
		idx := innerID - config.DirectBlocks - indirectEntries
		outer := idx / indirectEntries
		inner := idx % indirectEntries
		var scratch [4]byte
		fs.cache.Get(int(d.Indirect2)).Read(int(outer*4), scratch[:])
		mid := readU32(scratch[:])
		if mid == 0 {
			bid, ok := fs.AllocData()
			if !ok {
				panic("easyfs: out of data blocks extending indirect2 secondary")
			}
			mid = bid
			putU32(scratch[:], mid)
			fs.cache.Get(int(d.Indirect2)).Write(int(outer*4), scratch[:])
		}
		putU32(scratch[:], blockID)
		fs.cache.Get(int(mid)).Write(int(inner*4), scratch[:])
	}
}

// ClearSize deallocates every block d owns (data, then index blocks),
// returning the list of freed absolute block numbers, and zeroes
// Size, per spec.md §4.5.
func (fs *FileSystem) ClearSize(id uint32) []uint32 {
	d := fs.GetDiskInode(id)
	dataBlocks := d.DataBlocks()
	var freed []uint32

	n := dataBlocks
	if n > config.DirectBlocks {
		n = config.DirectBlocks
	}
	for i := uint32(0); i < n; i++ {
		freed = append(freed, d.Direct[i])
		d.Direct[i] = 0
	}
	if dataBlocks > config.DirectBlocks && d.Indirect1 != 0 {
		n1 := dataBlocks - config.DirectBlocks
		if n1 > indirectEntries {
			n1 = indirectEntries
		}
		var scratch [4]byte
		for i := uint32(0); i < n1; i++ {
			fs.cache.Get(int(d.Indirect1)).Read(int(i*4), scratch[:])
			freed = append(freed, readU32(scratch[:]))
		}
		freed = append(freed, d.Indirect1)
		d.Indirect1 = 0
	}
	if dataBlocks > config.DirectBlocks+indirectEntries && d.Indirect2 != 0 {
		remaining := dataBlocks - config.DirectBlocks - indirectEntries
		outerCount := (remaining + indirectEntries - 1) / indirectEntries
		var scratch [4]byte
		for o := uint32(0); o < outerCount; o++ {
			fs.cache.Get(int(d.Indirect2)).Read(int(o*4), scratch[:])
			mid := readU32(scratch[:])
			innerCount := remaining - o*indirectEntries
			if innerCount > indirectEntries {
				innerCount = indirectEntries
			}
			for i := uint32(0); i < innerCount; i++ {
				fs.cache.Get(int(mid)).Read(int(i*4), scratch[:])
				freed = append(freed, readU32(scratch[:]))
			}
			freed = append(freed, mid)
		}
		freed = append(freed, d.Indirect2)
		d.Indirect2 = 0
	}
	d.Size = 0
	fs.SetDiskInode(id, d)
	for _, b := range freed {
		fs.DeallocData(b)
	}
	return freed
}

func readU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
