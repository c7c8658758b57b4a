// Package syscall dispatches the numbered table from spec.md §6,
// validating every user pointer against the caller's address space
// before touching it, grounded on the teacher's convention of
// confining unsafe memory access behind small validated helpers
// (pagetable.TranslatedByteBuffer/TranslatedStr) rather than trusting
// raw addresses.
package syscall

import (
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/file"
	"github.com/RainaX/rCore-v3/internal/fs/vfs"
	"github.com/RainaX/rCore-v3/internal/pagetable"
	"github.com/RainaX/rCore-v3/internal/task"
	"github.com/RainaX/rCore-v3/internal/trap"
	"github.com/RainaX/rCore-v3/internal/vm"
)

// Numbers, from spec.md §6.
const (
	SysDup         = 24
	SysUnlinkat    = 35
	SysLinkat      = 37
	SysOpen        = 56
	SysClose       = 57
	SysPipe        = 59
	SysRead        = 63
	SysWrite       = 64
	SysFstat       = 80
	SysExit        = 93
	SysYield       = 124
	SysSetPriority = 140
	SysGetTime     = 169
	SysGetpid      = 172
	SysMunmap      = 215
	SysFork        = 220
	SysExec        = 221
	SysMmap        = 222
	SysWaitpid     = 260
	SysSpawn       = 400
	SysMailread    = 401
	SysMailwrite   = 402
)

// Open flags, matching the subset spec.md §4.6 requires.
const (
	OReadOnly  = 0x000
	OWriteOnly = 0x001
	ORdwr      = 0x002
	OCreate    = 0x200
)

// Context bundles everything a syscall handler needs: the calling
// task, the kernel-wide resources it may touch, and a wall clock for
// sys_get_time.
type Context struct {
	Task      *task.TCB
	Kernel    *task.Kernel
	Root      *vfs.Inode
	Mailboxes *file.Registry
	Clock     *trap.Clock
}

// Dispatch runs syscall number num with the six raw argument words a
// trap frame would carry, returning the value to place in the trap
// context's a0 on return (negative Err_t values signal failure, per
// spec.md §6).
func Dispatch(ctx *Context, num uint64, a [6]uint64) int64 {
	switch num {
	case SysDup:
		return ret1(ctx.Task.Fd.Dup(int(a[0])))
	case SysUnlinkat:
		return int64(sysUnlinkat(ctx, a))
	case SysLinkat:
		return int64(sysLinkat(ctx, a))
	case SysOpen:
		return sysOpen(ctx, a)
	case SysClose:
		return int64(ctx.Task.Fd.Close(int(a[0])))
	case SysPipe:
		return int64(sysPipe(ctx, a))
	case SysRead:
		return sysRead(ctx, a)
	case SysWrite:
		return sysWrite(ctx, a)
	case SysFstat:
		return int64(sysFstat(ctx, a))
	case SysExit:
		ctx.Task.Exit(int(int32(a[0])))
		panic("unreachable: sys_exit never returns")
	case SysYield:
		ctx.Kernel.Processor.Yield(ctx.Task)
		return 0
	case SysSetPriority:
		p := int(int64(a[0]))
		if err := ctx.Task.SetPriority(p); err != 0 {
			return int64(err)
		}
		return int64(p)
	case SysGetTime:
		return int64(sysGetTime(ctx, a))
	case SysGetpid:
		return int64(ctx.Task.Pid)
	case SysMunmap:
		return int64(sysMunmap(ctx, a))
	case SysMmap:
		return int64(sysMmap(ctx, a))
	case SysFork:
		return sysFork(ctx)
	case SysExec:
		return int64(sysExec(ctx, a))
	case SysWaitpid:
		return sysWaitpid(ctx, a)
	case SysSpawn:
		return sysSpawn(ctx, a)
	case SysMailread:
		return int64(sysMail(ctx, a, true))
	case SysMailwrite:
		return int64(sysMail(ctx, a, false))
	default:
		return int64(-defs.ENOSYS)
	}
}

func ret1(n int, err defs.Err_t) int64 {
	if err != 0 {
		return int64(err)
	}
	return int64(n)
}

// readUserBytes validates and copies length bytes starting at uva out
// of the task's address space.
func readUserBytes(t *task.TCB, uva uintptr, length int) ([]byte, defs.Err_t) {
	if !t.AS.IsMapped(uva, pagetable.R|pagetable.U) {
		return nil, -defs.EFAULT
	}
	buf := make([]byte, length)
	if err := t.AS.Table.CopyIn(uva, buf); err != 0 {
		return nil, err
	}
	return buf, 0
}

func writeUserBytes(t *task.TCB, uva uintptr, src []byte) defs.Err_t {
	if !t.AS.IsMapped(uva, pagetable.W|pagetable.U) {
		return -defs.EFAULT
	}
	return t.AS.Table.CopyOut(uva, src)
}

func readUserStr(t *task.TCB, uva uintptr) (string, defs.Err_t) {
	if !t.AS.IsMapped(uva, pagetable.R|pagetable.U) {
		return "", -defs.EFAULT
	}
	return t.AS.Table.TranslatedStr(uva)
}

func sysRead(ctx *Context, a [6]uint64) int64 {
	fd, err := ctx.Task.Fd.Get(int(a[0]))
	if err != 0 {
		return int64(err)
	}
	if !fd.File.Readable() {
		return int64(-defs.EBADF)
	}
	length := int(a[2])
	buf := make([]byte, length)
	n, rerr := fd.File.Read(buf)
	if rerr != 0 {
		return int64(rerr)
	}
	if werr := writeUserBytes(ctx.Task, uintptr(a[1]), buf[:n]); werr != 0 {
		return int64(werr)
	}
	return int64(n)
}

func sysWrite(ctx *Context, a [6]uint64) int64 {
	fd, err := ctx.Task.Fd.Get(int(a[0]))
	if err != 0 {
		return int64(err)
	}
	if !fd.File.Writable() {
		return int64(-defs.EBADF)
	}
	buf, rerr := readUserBytes(ctx.Task, uintptr(a[1]), int(a[2]))
	if rerr != 0 {
		return int64(rerr)
	}
	n, werr := fd.File.Write(buf)
	if werr != 0 {
		return int64(werr)
	}
	return int64(n)
}

func sysOpen(ctx *Context, a [6]uint64) int64 {
	name, err := readUserStr(ctx.Task, uintptr(a[0]))
	if err != 0 {
		return int64(err)
	}
	flags := int(a[1])
	ino, ferr := ctx.Root.Find(name)
	if ferr != 0 {
		if flags&OCreate == 0 {
			return int64(ferr)
		}
		ino, ferr = ctx.Root.Create(name)
		if ferr != 0 {
			return int64(ferr)
		}
	} else if flags&OCreate != 0 {
		ino.Clear()
	}
	readable := flags&ORdwr != 0 || flags&OWriteOnly == 0
	writable := flags&OWriteOnly != 0 || flags&ORdwr != 0
	f := file.OpenInode(ino, readable, writable)
	return int64(ctx.Task.Fd.Alloc(f))
}

func sysFstat(ctx *Context, a [6]uint64) defs.Err_t {
	fd, err := ctx.Task.Fd.Get(int(a[0]))
	if err != 0 {
		return err
	}
	st, serr := fd.File.Fstat()
	if serr != 0 {
		return serr
	}
	buf := encodeStat(st)
	return writeUserBytes(ctx.Task, uintptr(a[1]), buf)
}

func sysLinkat(ctx *Context, a [6]uint64) defs.Err_t {
	oldName, err := readUserStr(ctx.Task, uintptr(a[1]))
	if err != 0 {
		return err
	}
	newName, err := readUserStr(ctx.Task, uintptr(a[3]))
	if err != 0 {
		return err
	}
	target, ferr := ctx.Root.Find(oldName)
	if ferr != 0 {
		return ferr
	}
	return ctx.Root.Link(newName, target)
}

func sysUnlinkat(ctx *Context, a [6]uint64) defs.Err_t {
	name, err := readUserStr(ctx.Task, uintptr(a[1]))
	if err != 0 {
		return err
	}
	return ctx.Root.Unlink(name)
}

func sysPipe(ctx *Context, a [6]uint64) defs.Err_t {
	r, w := file.NewPipe()
	rfd := ctx.Task.Fd.Alloc(r)
	wfd := ctx.Task.Fd.Alloc(w)
	var buf [2]uint32
	buf[0] = uint32(rfd)
	buf[1] = uint32(wfd)
	out := make([]byte, 8)
	putU32(out[0:4], buf[0])
	putU32(out[4:8], buf[1])
	return writeUserBytes(ctx.Task, uintptr(a[0]), out)
}

func sysMmap(ctx *Context, a [6]uint64) defs.Err_t {
	return ctx.Task.AS.Mmap(uintptr(a[0]), uintptr(a[1]), int(a[2]))
}

func sysMunmap(ctx *Context, a [6]uint64) defs.Err_t {
	return ctx.Task.AS.Munmap(uintptr(a[0]), uintptr(a[1]))
}

func sysGetTime(ctx *Context, a [6]uint64) defs.Err_t {
	tv := ctx.Clock.Now()
	buf := make([]byte, 16)
	putU64(buf[0:8], tv.Sec)
	putU64(buf[8:16], tv.Usec)
	return writeUserBytes(ctx.Task, uintptr(a[0]), buf)
}

// sysFork re-invokes the parent's own program closure on the child,
// documented on task.TCB.Program: a hosted simulation has no register
// state to snapshot and resume the parent mid-flight from, so a
// forked program must branch on sys_getpid rather than on fork's
// return value to tell parent and child apart. The pid returned here
// is therefore only meaningful to the parent; the child never
// observes it as fork(2)'s return value the way real user code would.
func sysFork(ctx *Context) int64 {
	child, err := ctx.Kernel.Fork(ctx.Task, ctx.Task.Program)
	if err != 0 {
		return int64(err)
	}
	child.Mailbox = ctx.Mailboxes.Create(int(child.Pid))
	return int64(child.Pid)
}

func sysExec(ctx *Context, a [6]uint64) defs.Err_t {
	path, err := readUserStr(ctx.Task, uintptr(a[0]))
	if err != 0 {
		return err
	}
	argv, err := readArgv(ctx.Task, uintptr(a[1]))
	if err != 0 {
		return err
	}
	raw, err := loadFileBytes(ctx.Root, path)
	if err != 0 {
		return err
	}
	// ExecImage installs the new entry/sp into the task's trap-context
	// page itself (task.installTrapContext); dispatch has nothing left
	// to do with the returned values.
	_, _, err = ctx.Kernel.ExecImage(ctx.Task, raw, argv)
	return err
}

// readArgv reads a NUL-terminated array of user pointers at uva, each
// pointing to a NUL-terminated argument string, matching the argv
// layout PushArgv itself builds (internal/vm/elf.go).
func readArgv(t *task.TCB, uva uintptr) ([][]byte, defs.Err_t) {
	if uva == 0 {
		return nil, 0
	}
	var argv [][]byte
	for i := 0; ; i++ {
		ptrBuf, err := readUserBytes(t, uva+uintptr(i)*8, 8)
		if err != 0 {
			return nil, err
		}
		var p uint64
		for j := 7; j >= 0; j-- {
			p = p<<8 | uint64(ptrBuf[j])
		}
		if p == 0 {
			break
		}
		s, err := readUserStr(t, uintptr(p))
		if err != 0 {
			return nil, err
		}
		argv = append(argv, []byte(s))
	}
	return argv, 0
}

// loadFileBytes reads name's entire contents out of the filesystem
// rooted at root.
func loadFileBytes(root *vfs.Inode, name string) ([]byte, defs.Err_t) {
	ino, err := root.Find(name)
	if err != 0 {
		return nil, err
	}
	st := ino.Stat()
	buf := make([]byte, st.Size)
	ino.ReadAt(0, buf)
	return buf, 0
}

func sysWaitpid(ctx *Context, a [6]uint64) int64 {
	pid := int(int64(a[0]))
	reaped, code, err := ctx.Kernel.Waitpid(ctx.Task, pid)
	if err != 0 {
		return int64(err)
	}
	ctx.Mailboxes.Remove(reaped)
	status := make([]byte, 4)
	putU32(status, uint32(int32(code)))
	if werr := writeUserBytes(ctx.Task, uintptr(a[1]), status); werr != 0 {
		return int64(werr)
	}
	return int64(reaped)
}

func sysSpawn(ctx *Context, a [6]uint64) int64 {
	path, err := readUserStr(ctx.Task, uintptr(a[0]))
	if err != 0 {
		return int64(err)
	}
	argv, err := readArgv(ctx.Task, uintptr(a[1]))
	if err != 0 {
		return int64(err)
	}
	raw, err := loadFileBytes(ctx.Root, path)
	if err != 0 {
		return int64(err)
	}
	child, err := ctx.Kernel.Spawn(ctx.Task, raw, argv, func(*task.TCB, uintptr, uintptr) {})
	if err != 0 {
		return int64(err)
	}
	child.Mailbox = ctx.Mailboxes.Create(int(child.Pid))
	return int64(child.Pid)
}

func sysMail(ctx *Context, a [6]uint64, read bool) defs.Err_t {
	mb, ok := ctx.Mailboxes.Find(int(ctx.Task.Pid))
	if !ok {
		return -defs.ESRCH
	}
	length := int(a[1])
	if read {
		buf := make([]byte, length)
		n, err := mb.Read(buf)
		if err != 0 {
			return err
		}
		return writeUserBytes(ctx.Task, uintptr(a[0]), buf[:n])
	}
	buf, err := readUserBytes(ctx.Task, uintptr(a[0]), length)
	if err != 0 {
		return err
	}
	_, werr := mb.Write(buf)
	return werr
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// encodeStat packs the spec.md §6 fstat record: dev:u64, ino:u64,
// mode:u32, nlink:u32, followed by 56 bytes of padding, for 80 bytes
// total.
func encodeStat(st file.Stat) []byte {
	buf := make([]byte, 80)
	putU64(buf[0:8], st.Dev)
	putU64(buf[8:16], uint64(st.InodeID))
	putU32(buf[16:20], st.Mode)
	putU32(buf[20:24], st.Nlink)
	return buf
}
