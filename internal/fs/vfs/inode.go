// Package vfs is the single filesystem-wide view over an easyfs
// filesystem, grounded on the teacher's fs package (a package-level
// lock serializing directory-structure mutations above the per-buffer
// block-cache locks beneath it). It implements spec.md §4.5's
// find/create/link/unlink/ls/stat/read_at/write_at/clear operations.
package vfs

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/fs/easyfs"
)

// fsLock is the single global lock serializing directory-structure
// mutations across the whole mounted filesystem. Per spec.md §4.5, a
// caller must never hold a block-cache buffer lock while acquiring
// this lock; Inode methods always acquire fsLock first and let
// easyfs/blkcache take their own locks beneath it.
var fsLock sync.Mutex

// FileType distinguishes a regular file from a directory in Stat.
type FileType int

const (
	TypeFile FileType = iota
	TypeDir
)

// Stat mirrors the fstat(2) contract from spec.md §6.
type Stat struct {
	InodeID uint32
	Type    FileType
	Size    uint32
	Nlink   uint32
}

// Inode is a handle onto one easyfs DiskInode, identified by its
// inode number. It does not cache the DiskInode in memory: every
// operation re-reads it from the block cache, which is itself backed
// by blkcache's LRU of resident buffers.
type Inode struct {
	fs *easyfs.FileSystem
	ID uint32
}

// Root returns a handle onto the filesystem's root directory.
func Root(fs *easyfs.FileSystem) *Inode {
	return &Inode{fs: fs, ID: easyfs.RootInodeID}
}

func (ino *Inode) disk() *easyfs.DiskInode { return ino.fs.GetDiskInode(ino.ID) }

// IsDir reports whether ino names a directory.
func (ino *Inode) IsDir() bool {
	fsLock.Lock()
	defer fsLock.Unlock()
	return ino.disk().IsDir()
}

// readDirEntries reads every directory entry from ino's data,
// assuming the caller already holds fsLock.
func (ino *Inode) readDirEntries(d *easyfs.DiskInode) []*easyfs.DirEntry {
	count := int(d.Size) / easyfs.DirEntrySize
	entries := make([]*easyfs.DirEntry, 0, count)
	buf := make([]byte, easyfs.DirEntrySize)
	for i := 0; i < count; i++ {
		d.ReadAt(ino.fs.Cache(), i*easyfs.DirEntrySize, buf)
		entries = append(entries, easyfs.DecodeDirEntry(buf))
	}
	return entries
}

// Find resolves name within the directory ino, returning the child
// inode if present.
func (ino *Inode) Find(name string) (*Inode, defs.Err_t) {
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	if !d.IsDir() {
		return nil, -defs.ENOTDIR
	}
	for _, e := range ino.readDirEntries(d) {
		if e.Name == name {
			return &Inode{fs: ino.fs, ID: e.InodeID}, 0
		}
	}
	return nil, -defs.ENOENT
}

// Ls lists every entry name in directory ino.
func (ino *Inode) Ls() ([]string, defs.Err_t) {
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	if !d.IsDir() {
		return nil, -defs.ENOTDIR
	}
	names := make([]string, 0)
	for _, e := range ino.readDirEntries(d) {
		names = append(names, e.Name)
	}
	return names, 0
}

// appendEntry grows directory d by one DirEntry, assuming fsLock is
// already held.
func (ino *Inode) appendEntry(d *easyfs.DiskInode, e *easyfs.DirEntry) {
	offset := int(d.Size)
	if !ino.fs.IncreaseSize(ino.ID, d.Size+easyfs.DirEntrySize) {
		panic("vfs: out of space appending directory entry")
	}
	d2 := ino.disk()
	d2.WriteAt(ino.fs.Cache(), offset, e.Encode())
}

// Create makes a new regular file named name inside directory ino and
// returns its inode, or EEXIST if the name is already taken.
func (ino *Inode) Create(name string) (*Inode, defs.Err_t) {
	if len(name) > config.NameLimit {
		return nil, -defs.ENAMETOOLONG
	}
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	if !d.IsDir() {
		return nil, -defs.ENOTDIR
	}
	for _, e := range ino.readDirEntries(d) {
		if e.Name == name {
			return nil, -defs.EEXIST
		}
	}
	newID, ok := ino.fs.AllocInode()
	if !ok {
		return nil, -defs.ENOSPC
	}
	ino.fs.SetDiskInode(newID, &easyfs.DiskInode{Type: easyfs.TypeFile})
	ino.appendEntry(d, &easyfs.DirEntry{Name: name, InodeID: newID})
	return &Inode{fs: ino.fs, ID: newID}, 0
}

// Link adds a second directory entry named newName inside ino that
// refers to the same underlying inode as target, implementing the
// hard-link semantics of spec.md §4.5 (no nlink count on DiskInode
// itself; Stat's Nlink is computed by scanning, see Stat below).
func (ino *Inode) Link(newName string, target *Inode) defs.Err_t {
	if len(newName) > config.NameLimit {
		return -defs.ENAMETOOLONG
	}
	if target.fs != ino.fs {
		return -defs.EINVAL
	}
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	if !d.IsDir() {
		return -defs.ENOTDIR
	}
	for _, e := range ino.readDirEntries(d) {
		if e.Name == newName {
			return -defs.EEXIST
		}
	}
	ino.appendEntry(d, &easyfs.DirEntry{Name: newName, InodeID: target.ID})
	return 0
}

// countLinks scans directory ino for every entry pointing at inodeID.
// Caller must hold fsLock.
func (ino *Inode) countLinks(inodeID uint32) int {
	d := ino.disk()
	if !d.IsDir() {
		return 0
	}
	n := 0
	for _, e := range ino.readDirEntries(d) {
		if e.InodeID == inodeID {
			n++
		}
	}
	return n
}

// Unlink removes the directory entry named name from ino by writing an
// empty DirEntry in place of the matched slot, per spec.md §4.5 (the 0
// inode number is the dirent's "deleted/empty" sentinel). Directory
// size and the target inode's data blocks are left untouched;
// reclaiming either is explicitly out of scope.
func (ino *Inode) Unlink(name string) defs.Err_t {
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	if !d.IsDir() {
		return -defs.ENOTDIR
	}
	entries := ino.readDirEntries(d)
	idx := -1
	for i, e := range entries {
		if e.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 || entries[idx].InodeID == 0 {
		return -defs.ENOENT
	}
	empty := (&easyfs.DirEntry{}).Encode()
	d.WriteAt(ino.fs.Cache(), idx*easyfs.DirEntrySize, empty)
	return 0
}

// ReadAt reads into buf starting at offset, returning the byte count.
func (ino *Inode) ReadAt(offset int, buf []byte) int {
	fsLock.Lock()
	defer fsLock.Unlock()
	return ino.disk().ReadAt(ino.fs.Cache(), offset, buf)
}

// WriteAt writes buf at offset, growing the inode first if needed.
func (ino *Inode) WriteAt(offset int, buf []byte) int {
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	end := uint32(offset + len(buf))
	if end > d.Size {
		if !ino.fs.IncreaseSize(ino.ID, end) {
			return 0
		}
		d = ino.disk()
	}
	return d.WriteAt(ino.fs.Cache(), offset, buf)
}

// Clear truncates the inode to zero length, freeing its data blocks.
func (ino *Inode) Clear() {
	fsLock.Lock()
	defer fsLock.Unlock()
	ino.fs.ClearSize(ino.ID)
}

// Stat reports the inode's type, size, and hard-link count. Nlink is
// computed by walking the root directory tree is not attempted here;
// per spec.md's flat single-directory layout, only the root directory
// is scanned, which is exact for every layout this filesystem
// actually produces (there is no mkdir operation).
func (ino *Inode) Stat() Stat {
	fsLock.Lock()
	defer fsLock.Unlock()
	d := ino.disk()
	ft := TypeFile
	if d.IsDir() {
		ft = TypeDir
	}
	nlink := uint32(1)
	if !d.IsDir() {
		root := &Inode{fs: ino.fs, ID: easyfs.RootInodeID}
		if n := root.countLinks(ino.ID); n > 0 {
			nlink = uint32(n)
		}
	}
	return Stat{InodeID: ino.ID, Type: ft, Size: d.Size, Nlink: nlink}
}
