package syscall

import (
	"testing"
	"time"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/file"
	"github.com/RainaX/rCore-v3/internal/fs/blkcache"
	"github.com/RainaX/rCore-v3/internal/fs/easyfs"
	"github.com/RainaX/rCore-v3/internal/fs/vfs"
	"github.com/RainaX/rCore-v3/internal/mem"
	"github.com/RainaX/rCore-v3/internal/pagetable"
	"github.com/RainaX/rCore-v3/internal/task"
	"github.com/RainaX/rCore-v3/internal/trap"
)

// testDevice is an in-memory blkcache.Device, standing in for
// internal/diskimg.RAMDisk without this package importing cmd-adjacent
// infrastructure it doesn't otherwise need.
type testDevice struct {
	blocks [][config.BlockSize]byte
}

func (d *testDevice) ReadBlock(id int, buf []byte)  { copy(buf, d.blocks[id][:]) }
func (d *testDevice) WriteBlock(id int, buf []byte) { copy(d.blocks[id][:], buf) }

const testUserBuf = uintptr(0x1000)

// newTestContext builds a syscall.Context around a bare task with one
// writable+readable user page mapped at testUserBuf, a mounted
// filesystem, and a real task.Kernel — enough to dispatch syscalls
// without loading a full ELF image.
func newTestContext(t *testing.T) *Context {
	t.Helper()
	alloc := mem.NewAllocator(0, 512)
	trampoline, ok := alloc.Alloc()
	if !ok {
		t.Fatal("failed to allocate trampoline frame")
	}
	mgr := task.NewManager()
	proc := task.NewProcessor(mgr)
	tk := &task.Kernel{Alloc: alloc, Trampoline: trampoline.Frame(), Manager: mgr, Processor: proc}

	dev := &testDevice{blocks: make([][config.BlockSize]byte, 4096)}
	cache := blkcache.New(dev, 16)
	fs := easyfs.Create(cache, 4096, 1)
	root := vfs.Root(fs)

	tcb := tk.NewTask()
	tcb.InstallStdio()
	if err := tcb.NewAddressSpace(alloc); err != 0 {
		t.Fatalf("NewAddressSpace failed: %d", err)
	}
	if err := tcb.AS.InsertFramedArea(testUserBuf, testUserBuf+0x1000, pagetable.R|pagetable.W|pagetable.U); err != 0 {
		t.Fatalf("InsertFramedArea failed: %d", err)
	}
	proc.SetInitProc(tcb)
	mgr.Add(tcb)

	return &Context{
		Task:      tcb,
		Kernel:    tk,
		Root:      root,
		Mailboxes: file.NewRegistry(),
		Clock:     trap.NewClock(time.Now()),
	}
}

func TestSysGetpid(t *testing.T) {
	ctx := newTestContext(t)
	if got := Dispatch(ctx, SysGetpid, [6]uint64{}); got != int64(ctx.Task.Pid) {
		t.Errorf("SysGetpid = %d, want %d", got, ctx.Task.Pid)
	}
}

func TestSysPipeReadWriteRoundtrip(t *testing.T) {
	ctx := newTestContext(t)

	if ret := Dispatch(ctx, SysPipe, [6]uint64{uint64(testUserBuf)}); ret != 0 {
		t.Fatalf("SysPipe failed: %d", ret)
	}
	rfd := readU32(ctx, testUserBuf)
	wfd := readU32(ctx, testUserBuf+4)

	msg := []byte("ping")
	if err := writeUserBytes(ctx.Task, testUserBuf+64, msg); err != 0 {
		t.Fatalf("writeUserBytes failed: %d", err)
	}
	n := Dispatch(ctx, SysWrite, [6]uint64{uint64(wfd), uint64(testUserBuf + 64), uint64(len(msg))})
	if n != int64(len(msg)) {
		t.Fatalf("SysWrite = %d, want %d", n, len(msg))
	}

	n = Dispatch(ctx, SysRead, [6]uint64{uint64(rfd), uint64(testUserBuf + 128), uint64(len(msg))})
	if n != int64(len(msg)) {
		t.Fatalf("SysRead = %d, want %d", n, len(msg))
	}
	got, err := readUserBytes(ctx.Task, testUserBuf+128, len(msg))
	if err != 0 {
		t.Fatalf("readUserBytes failed: %d", err)
	}
	if string(got) != string(msg) {
		t.Errorf("roundtrip got %q, want %q", got, msg)
	}
}

func TestSysOpenCreateWriteFstat(t *testing.T) {
	ctx := newTestContext(t)

	namePath := testUserBuf
	writeUserBytes(ctx.Task, namePath, append([]byte("greeting.txt"), 0))

	fd := Dispatch(ctx, SysOpen, [6]uint64{uint64(namePath), uint64(OCreate | ORdwr)})
	if fd < 0 {
		t.Fatalf("SysOpen failed: %d", fd)
	}

	payload := []byte("hi there")
	writeUserBytes(ctx.Task, testUserBuf+64, payload)
	n := Dispatch(ctx, SysWrite, [6]uint64{uint64(fd), uint64(testUserBuf + 64), uint64(len(payload))})
	if n != int64(len(payload)) {
		t.Fatalf("SysWrite = %d, want %d", n, len(payload))
	}

	statBuf := testUserBuf + 256
	if ret := Dispatch(ctx, SysFstat, [6]uint64{uint64(fd), uint64(statBuf)}); ret != 0 {
		t.Fatalf("SysFstat failed: %d", ret)
	}
}

func TestSysCloseInvalidFdFails(t *testing.T) {
	ctx := newTestContext(t)
	if ret := Dispatch(ctx, SysClose, [6]uint64{99}); ret == 0 {
		t.Error("closing an unopened fd should fail")
	}
}

func readU32(ctx *Context, uva uintptr) uint32 {
	b, _ := readUserBytes(ctx.Task, uva, 4)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
