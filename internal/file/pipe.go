package file

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
)

// ring is the circular byte buffer backing a pipe, grounded on the
// teacher's Circbuf_t (circbuf/circbuf.go): a fixed backing slice with
// independent head/tail cursors that only ever increase, wrapped
// modulo capacity on access.
type ring struct {
	buf        []byte
	head, tail int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]byte, capacity)}
}

func (r *ring) cap() int    { return len(r.buf) }
func (r *ring) used() int   { return r.head - r.tail }
func (r *ring) full() bool  { return r.used() == r.cap() }
func (r *ring) empty() bool { return r.head == r.tail }
func (r *ring) space() int  { return r.cap() - r.used() }

func (r *ring) write(src []byte) int {
	n := len(src)
	if n > r.space() {
		n = r.space()
	}
	for i := 0; i < n; i++ {
		r.buf[(r.head+i)%r.cap()] = src[i]
	}
	r.head += n
	return n
}

func (r *ring) read(dst []byte) int {
	n := len(dst)
	if n > r.used() {
		n = r.used()
	}
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(r.tail+i)%r.cap()]
	}
	r.tail += n
	return n
}

// pipePair is the shared state between a pipe's read and write ends.
// readRefs/writeRefs count the descriptor-table slots referencing each
// end (one per sys_pipe, plus one more per dup/fork); the end only
// becomes closed once its count reaches zero, so a fork'd or dup'd
// copy of one fd can't prematurely signal EOF/EPIPE to the other.
type pipePair struct {
	mu         sync.Mutex
	cond       *sync.Cond
	data       *ring
	readClosed bool
	writClosed bool
	readRefs   int
	writeRefs  int
}

func newPipePair() *pipePair {
	p := &pipePair{data: newRing(config.PGSize), readRefs: 1, writeRefs: 1}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// PipeReader is the read end of an anonymous pipe created by sys_pipe,
// per spec.md §4.6.
type PipeReader struct{ p *pipePair }

// PipeWriter is the write end.
type PipeWriter struct{ p *pipePair }

// NewPipe creates a connected pipe pair with spec.md's fixed-size
// ring buffer (one page).
func NewPipe() (*PipeReader, *PipeWriter) {
	p := newPipePair()
	return &PipeReader{p: p}, &PipeWriter{p: p}
}

func (r *PipeReader) Readable() bool { return true }
func (r *PipeReader) Writable() bool { return false }

// Read blocks until data is available or the write end is closed, in
// which case it returns (0, 0) signaling EOF, matching Circbuf_t's
// "return 0 when there's nothing to give" contract on an empty,
// unwritable buffer.
func (r *PipeReader) Read(buf []byte) (int, defs.Err_t) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.data.empty() && !p.writClosed {
		p.cond.Wait()
	}
	n := p.data.read(buf)
	p.cond.Broadcast()
	return n, 0
}

func (r *PipeReader) Write(buf []byte) (int, defs.Err_t) { return 0, -defs.EBADF }

func (r *PipeReader) Fstat() (Stat, defs.Err_t) { return NewStat(TypePipe, 0, 0, 1), 0 }

// addRef records an additional descriptor-table slot sharing this read
// end, created by dup(2) or fork.
func (r *PipeReader) addRef() {
	p := r.p
	p.mu.Lock()
	p.readRefs++
	p.mu.Unlock()
}

// Close drops this slot's reference to the read end; once every
// referencing slot has closed, a Write on the paired writer fails with
// EPIPE, whether or not the buffer still holds unread bytes.
func (r *PipeReader) Close() {
	p := r.p
	p.mu.Lock()
	p.readRefs--
	if p.readRefs <= 0 {
		p.readClosed = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}

func (w *PipeWriter) Readable() bool { return false }
func (w *PipeWriter) Writable() bool { return true }

func (w *PipeWriter) Read(buf []byte) (int, defs.Err_t) { return 0, -defs.EBADF }

// Write blocks until space is available or the read end closes
// (EPIPE). It writes in best-effort chunks
// like Circbuf_t.Copyin, retrying until all of buf is delivered.
func (w *PipeWriter) Write(buf []byte) (int, defs.Err_t) {
	p := w.p
	p.mu.Lock()
	defer p.mu.Unlock()
	written := 0
	for written < len(buf) {
		if p.readClosed {
			return written, -defs.EPIPE
		}
		for p.data.full() && !p.readClosed {
			p.cond.Wait()
		}
		if p.readClosed {
			continue
		}
		n := p.data.write(buf[written:])
		written += n
		p.cond.Broadcast()
	}
	return written, 0
}

func (w *PipeWriter) Fstat() (Stat, defs.Err_t) { return NewStat(TypePipe, 0, 0, 1), 0 }

// addRef records an additional descriptor-table slot sharing this
// write end, created by dup(2) or fork.
func (w *PipeWriter) addRef() {
	p := w.p
	p.mu.Lock()
	p.writeRefs++
	p.mu.Unlock()
}

// Close drops this slot's reference to the write end; once every
// referencing slot has closed, a blocked reader wakes and sees EOF.
func (w *PipeWriter) Close() {
	p := w.p
	p.mu.Lock()
	p.writeRefs--
	if p.writeRefs <= 0 {
		p.writClosed = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}
