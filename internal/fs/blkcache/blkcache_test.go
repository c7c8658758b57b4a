package blkcache

import (
	"testing"

	"github.com/RainaX/rCore-v3/internal/config"
)

type memDevice struct {
	blocks [][config.BlockSize]byte
	reads  int
	writes int
}

func newMemDevice(n int) *memDevice {
	return &memDevice{blocks: make([][config.BlockSize]byte, n)}
}

func (d *memDevice) ReadBlock(id int, buf []byte) {
	d.reads++
	copy(buf, d.blocks[id][:])
}

func (d *memDevice) WriteBlock(id int, buf []byte) {
	d.writes++
	copy(d.blocks[id][:], buf)
}

func TestCacheHitMissCounts(t *testing.T) {
	dev := newMemDevice(4)
	c := New(dev, 2)

	c.Get(0)
	c.Get(0)
	c.Get(1)

	hits, misses := c.Stats()
	if hits != 1 || misses != 2 {
		t.Errorf("hits=%d misses=%d, want hits=1 misses=2", hits, misses)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	dev := newMemDevice(4)
	c := New(dev, 2)

	c.Get(0)
	c.Get(1)
	c.Get(0) // touch 0, so 1 becomes the LRU victim
	c.Get(2) // evicts block 1

	if _, ok := c.index[1]; ok {
		t.Error("block 1 should have been evicted as least-recently-used")
	}
	if _, ok := c.index[0]; !ok {
		t.Error("block 0 should still be cached")
	}
}

func TestBufferWriteIsVisibleOnReGet(t *testing.T) {
	dev := newMemDevice(2)
	c := New(dev, 2)

	buf := c.Get(0)
	buf.Write(0, []byte("hello"))

	var out [5]byte
	c.Get(0).Read(0, out[:])
	if string(out[:]) != "hello" {
		t.Errorf("got %q, want %q", out, "hello")
	}
}

func TestEvictionFlushesDirtyBuffer(t *testing.T) {
	dev := newMemDevice(2)
	c := New(dev, 1)

	c.Get(0).Write(0, []byte("x"))
	c.Get(1) // evicts block 0, must flush it first

	if dev.blocks[0][0] != 'x' {
		t.Error("dirty block 0 was evicted without being flushed to the device")
	}
}
