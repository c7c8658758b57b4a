package file

import (
	"sync"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
)

// Mailbox is a per-process fixed-slot message queue, ported from
// mailbox.rs. The original tracked only head and tail cursors and
// inferred full/empty from head == tail, which makes the two states
// indistinguishable when a status field isn't threaded through every
// call site consistently; this port tracks the slot count directly so
// Full/Empty never depend on head and tail coinciding.
type Mailbox struct {
	mu    sync.Mutex
	slots [][]byte
	head  int
	tail  int
	count int
}

// NewMailbox allocates an empty mailbox with spec.md's fixed capacity.
func NewMailbox() *Mailbox {
	return &Mailbox{slots: make([][]byte, config.MailboxCapacity)}
}

func (m *Mailbox) Readable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count > 0
}

func (m *Mailbox) Writable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count < config.MailboxCapacity
}

// Read pops the oldest message and copies up to len(buf) bytes of it
// into buf, returning the copied length. Returns (0, EAGAIN) if empty;
// the mailread syscall passes that error straight back to the caller.
func (m *Mailbox) Read(buf []byte) (int, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return 0, -defs.EAGAIN
	}
	msg := m.slots[m.head]
	n := copy(buf, msg)
	m.slots[m.head] = nil
	m.head = (m.head + 1) % config.MailboxCapacity
	m.count--
	return n, 0
}

// Write enqueues a copy of buf (truncated to config.MaxMailLen) as a
// new message. Returns (0, EAGAIN) if full.
func (m *Mailbox) Write(buf []byte) (int, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == config.MailboxCapacity {
		return 0, -defs.EAGAIN
	}
	n := len(buf)
	if n > config.MaxMailLen {
		n = config.MaxMailLen
	}
	msg := make([]byte, n)
	copy(msg, buf[:n])
	m.slots[m.tail] = msg
	m.tail = (m.tail + 1) % config.MailboxCapacity
	m.count++
	return n, 0
}

func (m *Mailbox) Fstat() (Stat, defs.Err_t) { return Stat{}, -defs.ENOSYS }

// Close is a no-op: a mailbox belongs to its pid's Registry entry, not
// to any descriptor, and is dropped by Registry.Remove.
func (m *Mailbox) Close() {}

// Registry maps pid to that process's mailbox, grounded on the
// original's MAILBOX_MANAGER: a global map guarded by a single lock,
// populated on task creation and cleared on exit.
type Registry struct {
	mu sync.Mutex
	m  map[int]*Mailbox
}

// NewRegistry creates an empty mailbox registry.
func NewRegistry() *Registry { return &Registry{m: make(map[int]*Mailbox)} }

// Create installs and returns a fresh mailbox for pid.
func (r *Registry) Create(pid int) *Mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb := NewMailbox()
	r.m[pid] = mb
	return mb
}

// Find looks up pid's mailbox.
func (r *Registry) Find(pid int) (*Mailbox, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mb, ok := r.m[pid]
	return mb, ok
}

// Remove drops pid's mailbox, called when the process exits.
func (r *Registry) Remove(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, pid)
}
