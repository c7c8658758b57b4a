package vfs

import (
	"testing"

	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
	"github.com/RainaX/rCore-v3/internal/diskimg"
	"github.com/RainaX/rCore-v3/internal/fs/blkcache"
	"github.com/RainaX/rCore-v3/internal/fs/easyfs"
)

func freshRoot(t *testing.T) *Inode {
	t.Helper()
	const totalBlocks = 4096
	dev := diskimg.New(totalBlocks, config.BlockSize)
	cache := blkcache.New(dev, config.BlockCacheCapacity)
	fs := easyfs.Create(cache, totalBlocks, 1)
	return Root(fs)
}

func TestCreateWriteReadRoundtrip(t *testing.T) {
	root := freshRoot(t)

	f, err := root.Create("hello.txt")
	if err != 0 {
		t.Fatalf("Create failed: %d", err)
	}
	payload := []byte("hello, easyfs")
	if n := f.WriteAt(0, payload); n != len(payload) {
		t.Fatalf("WriteAt wrote %d bytes, want %d", n, len(payload))
	}

	found, err := root.Find("hello.txt")
	if err != 0 {
		t.Fatalf("Find failed: %d", err)
	}
	buf := make([]byte, len(payload))
	if n := found.ReadAt(0, buf); n != len(payload) {
		t.Fatalf("ReadAt returned %d bytes, want %d", n, len(payload))
	}
	if string(buf) != string(payload) {
		t.Errorf("got %q, want %q", buf, payload)
	}
}

func TestFindMissingNameFails(t *testing.T) {
	root := freshRoot(t)
	if _, err := root.Find("nope"); err == 0 {
		t.Error("Find on a nonexistent name should fail")
	}
}

func TestLinkAndUnlink(t *testing.T) {
	root := freshRoot(t)

	f, err := root.Create("a.txt")
	if err != 0 {
		t.Fatalf("Create failed: %d", err)
	}
	f.WriteAt(0, []byte("data"))

	if err := root.Link("b.txt", f); err != 0 {
		t.Fatalf("Link failed: %d", err)
	}

	st := f.Stat()
	if st.Nlink != 2 {
		t.Errorf("Nlink = %d after linking, want 2", st.Nlink)
	}

	if err := root.Unlink("a.txt"); err != 0 {
		t.Fatalf("Unlink a.txt failed: %d", err)
	}
	if _, err := root.Find("a.txt"); err == 0 {
		t.Error("a.txt should be gone after unlink")
	}
	b, err := root.Find("b.txt")
	if err != 0 {
		t.Fatalf("b.txt should still resolve after unlinking its sibling name: %d", err)
	}
	buf := make([]byte, 4)
	b.ReadAt(0, buf)
	if string(buf) != "data" {
		t.Errorf("b.txt content = %q, want %q (data block should survive unlink of the other name)", buf, "data")
	}

	if err := root.Unlink("b.txt"); err != 0 {
		t.Fatalf("Unlink b.txt failed: %d", err)
	}
}

func TestUnlinkUnknownNameFails(t *testing.T) {
	root := freshRoot(t)
	if err := root.Unlink("ghost"); err != -defs.ENOENT && err == 0 {
		t.Error("Unlink of an unknown name should fail")
	}
}

func TestClearTruncatesToZero(t *testing.T) {
	root := freshRoot(t)
	f, _ := root.Create("c.txt")
	f.WriteAt(0, []byte("some content"))
	f.Clear()
	if st := f.Stat(); st.Size != 0 {
		t.Errorf("size after Clear = %d, want 0", st.Size)
	}
}
