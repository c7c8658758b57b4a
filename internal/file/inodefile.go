package file

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/fs/vfs"
)

// InodeFile is an open file backed by a filesystem inode, tracking
// its own read/write offset the way a biscuit Fd_t pairs a File_i
// with private seek state.
type InodeFile struct {
	mu       sync.Mutex
	ino      *vfs.Inode
	off      int
	readable bool
	writable bool
}

// OpenInode wraps ino as an open file with the given read/write mode,
// offset 0.
func OpenInode(ino *vfs.Inode, readable, writable bool) *InodeFile {
	return &InodeFile{ino: ino, readable: readable, writable: writable}
}

func (f *InodeFile) Readable() bool { return f.readable }
func (f *InodeFile) Writable() bool { return f.writable }

func (f *InodeFile) Read(buf []byte) (int, defs.Err_t) {
	if !f.readable {
		return 0, -defs.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.ino.ReadAt(f.off, buf)
	f.off += n
	return n, 0
}

func (f *InodeFile) Write(buf []byte) (int, defs.Err_t) {
	if !f.writable {
		return 0, -defs.EBADF
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.ino.WriteAt(f.off, buf)
	f.off += n
	return n, 0
}

func (f *InodeFile) Fstat() (Stat, defs.Err_t) {
	st := f.ino.Stat()
	ft := TypeFile
	if st.Type == vfs.TypeDir {
		ft = TypeDir
	}
	return NewStat(ft, st.InodeID, st.Size, st.Nlink), 0
}

// Inode exposes the underlying inode, used by unlink/link syscalls
// that operate on the directory tree rather than an open file's
// offset.
func (f *InodeFile) Inode() *vfs.Inode { return f.ino }

// Close is a no-op: an inode has no per-open-file resource to release
// beyond this handle's own offset, which is simply dropped.
func (f *InodeFile) Close() {}
