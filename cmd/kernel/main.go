// Command kernel boots the hosted rCore-v3 simulation: it mounts (or
// formats) an easy-fs disk image, spawns initproc, and runs the
// stride scheduler's admission loop until every task has exited.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"

	"github.com/RainaX/rCore-v3/internal/bootlog"
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/diskimg"
	"github.com/RainaX/rCore-v3/internal/kernel"
	"github.com/RainaX/rCore-v3/internal/kstat"
	"github.com/RainaX/rCore-v3/internal/task"
)

func main() {
	var (
		diskPath  string
		format    bool
		blocks    uint
		initPath  string
		kstatPath string
	)
	flag.StringVar(&diskPath, "disk", "", "path to the easy-fs disk image (created if -format is set)")
	flag.BoolVar(&format, "format", false, "format a fresh easy-fs filesystem instead of mounting an existing one")
	flag.UintVar(&blocks, "blocks", 8192, "block count for -format")
	flag.StringVar(&initPath, "init", "initproc", "name of the executable inside the image to run as initproc")
	flag.StringVar(&kstatPath, "kstat", "", "write a final pprof-format counters snapshot here on shutdown")
	flag.Parse()

	if diskPath == "" {
		fmt.Fprintln(os.Stderr, "kernel: -disk is required")
		os.Exit(1)
	}

	var dev kernel.Device
	if format {
		dev = diskimg.New(int(blocks), config.BlockSize)
	} else {
		d, err := diskimg.Load(diskPath, config.BlockSize)
		if err != nil {
			fmt.Fprintln(os.Stderr, "kernel:", err)
			os.Exit(1)
		}
		dev = d
	}

	log := bootlog.New(os.Stdout, language.English)

	boot := time.Now()
	var k *kernel.Kernel
	k, err := kernel.Init(dev, uint32(blocks), format, boot, log, func(t *task.TCB) {
		runInit(k, t, initPath)
	})
	if err != 0 {
		fmt.Fprintln(os.Stderr, "kernel: init failed:", err)
		os.Exit(1)
	}

	k.Run()

	if kstatPath != "" {
		if werr := writeKstat(k, kstatPath, boot); werr != nil {
			fmt.Fprintln(os.Stderr, "kernel: failed to write kstat snapshot:", werr)
		}
	}

	if rd, ok := dev.(*diskimg.RAMDisk); ok {
		if format {
			if werr := rd.SaveAs(diskPath); werr != nil {
				fmt.Fprintln(os.Stderr, "kernel: failed to save disk image:", werr)
			}
		} else if werr := rd.Flush(); werr != nil {
			fmt.Fprintln(os.Stderr, "kernel: failed to flush disk image:", werr)
		}
	}
}

// writeKstat snapshots the kernel's final counters to path as a
// pprof-format profile, the D_PROF analogue a hosted build exposes as
// a plain file rather than a /proc device node.
func writeKstat(k *kernel.Kernel, path string, boot time.Time) error {
	used, total := k.Alloc.Stats()
	hits, misses := k.Cache.Stats()
	c := kstat.Counters{
		FramesUsed:  int64(used),
		FramesTotal: int64(total),
		CacheHits:   hits,
		CacheMisses: misses,
		SchedPops:   k.Manager.SchedPops(),
		ReadyTasks:  int64(k.Manager.Len()),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return kstat.Write(f, c, boot, time.Since(boot))
}

// runInit loads the named executable out of the mounted filesystem
// and execs into it, the same bootstrap initproc.rs performs via
// sys_exec("initproc") compiled straight into the image. Any failure
// to find or load the binary exits the whole simulated machine.
func runInit(k *kernel.Kernel, t *task.TCB, path string) {
	ino, ferr := k.Root.Find(path)
	if ferr != 0 {
		fmt.Fprintln(os.Stderr, "kernel: initproc not found in image:", path)
		t.Exit(-1)
	}
	st := ino.Stat()
	raw := make([]byte, st.Size)
	ino.ReadAt(0, raw)

	entry, sp, eerr := k.Tasks.ExecImage(t, raw, nil)
	if eerr != 0 {
		fmt.Fprintln(os.Stderr, "kernel: failed to exec initproc:", eerr)
		t.Exit(-1)
	}
	_ = entry
	_ = sp
	// The simulated CPU has no real trap vector to resume into at
	// entry/sp; a hosted build has nothing further to do here since
	// there is no user-mode instruction stream to execute. Syscall
	// handlers are exercised instead by package-level tests on tasks
	// built without any loaded image.
	t.Exit(0)
}
