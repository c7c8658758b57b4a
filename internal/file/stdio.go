package file

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/RainaX/rCore-v3/internal/defs"
)

// Stdin wraps the host process's standard input as fd 0, grounded on
// the teacher's convention of a trivial passthrough File for console
// devices (no buffering beyond what the kernel sim needs).
type Stdin struct {
	mu sync.Mutex
	r  *bufio.Reader
}

// NewStdin opens the console input stream.
func NewStdin() *Stdin { return &Stdin{r: bufio.NewReader(os.Stdin)} }

func (s *Stdin) Readable() bool { return true }
func (s *Stdin) Writable() bool { return false }

func (s *Stdin) Read(buf []byte) (int, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.r.Read(buf)
	if err != nil && err != io.EOF {
		return n, -defs.EFAULT
	}
	return n, 0
}

func (s *Stdin) Write(buf []byte) (int, defs.Err_t) { return 0, -defs.EBADF }

func (s *Stdin) Fstat() (Stat, defs.Err_t) { return NewStat(TypeCharDevice, 0, 0, 1), 0 }

// Close is a no-op: the host process's stdin is shared by every task's
// fd 0 and must survive any single task closing it.
func (s *Stdin) Close() {}

// Stdout wraps the host process's standard output as fd 1/2.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout opens the console output stream.
func NewStdout() *Stdout { return &Stdout{w: os.Stdout} }

// NewStderr opens the console error stream.
func NewStderr() *Stdout { return &Stdout{w: os.Stderr} }

func (s *Stdout) Readable() bool { return false }
func (s *Stdout) Writable() bool { return true }

func (s *Stdout) Read(buf []byte) (int, defs.Err_t) { return 0, -defs.EBADF }

func (s *Stdout) Write(buf []byte) (int, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(buf)
	if err != nil {
		return n, -defs.EFAULT
	}
	return n, 0
}

func (s *Stdout) Fstat() (Stat, defs.Err_t) { return NewStat(TypeCharDevice, 0, 0, 1), 0 }

// Close is a no-op, for the same reason as Stdin.Close.
func (s *Stdout) Close() {}
