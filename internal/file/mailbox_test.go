package file

import "testing"

func TestMailboxFifoOrdering(t *testing.T) {
	mb := NewMailbox()
	mb.Write([]byte("first"))
	mb.Write([]byte("second"))

	buf := make([]byte, 16)
	n, err := mb.Read(buf)
	if err != 0 || string(buf[:n]) != "first" {
		t.Fatalf("first Read = (%q, %d), want (first, 0)", buf[:n], err)
	}
	n, err = mb.Read(buf)
	if err != 0 || string(buf[:n]) != "second" {
		t.Fatalf("second Read = (%q, %d), want (second, 0)", buf[:n], err)
	}
}

func TestMailboxEmptyReadReturnsEAGAIN(t *testing.T) {
	mb := NewMailbox()
	buf := make([]byte, 4)
	if _, err := mb.Read(buf); err == 0 {
		t.Error("Read on an empty mailbox should fail with EAGAIN, not block")
	}
}

func TestMailboxFullWriteReturnsEAGAIN(t *testing.T) {
	mb := NewMailbox()
	for i := 0; i < 16; i++ {
		if _, err := mb.Write([]byte("x")); err != 0 {
			t.Fatalf("Write %d failed: %d", i, err)
		}
	}
	if !mb.Writable() {
		// already full by construction; exercise Write's own check too
	}
	if _, err := mb.Write([]byte("overflow")); err == 0 {
		t.Error("Write to a full mailbox should fail with EAGAIN, not block")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	mb := reg.Create(42)
	mb.Write([]byte("hi"))

	found, ok := reg.Find(42)
	if !ok || found != mb {
		t.Fatal("Find did not return the mailbox Create installed")
	}

	reg.Remove(42)
	if _, ok := reg.Find(42); ok {
		t.Error("mailbox should be gone after Remove")
	}
}
