package file

import (
	"testing"
	"time"
)

// TestPipeRoundtrip ports pipetest.rs's basic scenario: a write
// followed by a read of the same bytes.
func TestPipeRoundtrip(t *testing.T) {
	r, w := NewPipe()
	msg := []byte("Hello, world!")

	n, err := w.Write(msg)
	if err != 0 || n != len(msg) {
		t.Fatalf("Write = (%d, %d), want (%d, 0)", n, err, len(msg))
	}

	buf := make([]byte, len(msg))
	n, err = r.Read(buf)
	if err != 0 || n != len(msg) {
		t.Fatalf("Read = (%d, %d), want (%d, 0)", n, err, len(msg))
	}
	if string(buf) != string(msg) {
		t.Errorf("got %q, want %q", buf, msg)
	}
}

// TestPipeReadBlocksUntilWrite covers the blocking contract Circbuf_t
// and pipetest.rs both rely on: a reader on an empty pipe parks until
// data arrives.
func TestPipeReadBlocksUntilWrite(t *testing.T) {
	r, w := NewPipe()

	result := make(chan string, 1)
	go func() {
		buf := make([]byte, 5)
		n, _ := r.Read(buf)
		result <- string(buf[:n])
	}()

	select {
	case <-result:
		t.Fatal("Read returned before any data was written")
	case <-time.After(50 * time.Millisecond):
	}

	w.Write([]byte("abcde"))
	select {
	case got := <-result:
		if got != "abcde" {
			t.Errorf("got %q, want %q", got, "abcde")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read never unblocked after Write")
	}
}

// TestPipeReadEOFAfterWriterClose matches Circbuf_t's "return 0 once
// empty and unwritable" contract.
func TestPipeReadEOFAfterWriterClose(t *testing.T) {
	r, w := NewPipe()
	w.Close()

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != 0 || n != 0 {
		t.Errorf("Read after writer close = (%d, %d), want (0, 0) for EOF", n, err)
	}
}

// TestPipeWriteAfterReaderCloseFailsEPIPE covers the write-side half
// of the same close contract.
func TestPipeWriteAfterReaderCloseFailsEPIPE(t *testing.T) {
	r, w := NewPipe()
	r.Close()

	_, err := w.Write([]byte("x"))
	if err == 0 {
		t.Error("Write to a pipe whose reader closed should fail with EPIPE")
	}
}

// TestPipeLargeWriteDrainsAcrossMultipleReads ports pipe_large_test.rs:
// a write larger than the ring buffer's capacity must still be
// delivered in full once the reader keeps draining it.
func TestPipeLargeWriteDrainsAcrossMultipleReads(t *testing.T) {
	r, w := NewPipe()
	const total = 4 * 4096 // several times the one-page ring capacity
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	writeErr := make(chan int64, 1)
	go func() {
		_, err := w.Write(payload)
		writeErr <- int64(err)
	}()

	got := make([]byte, 0, total)
	buf := make([]byte, 1024)
	deadline := time.After(5 * time.Second)
	for len(got) < total {
		select {
		case <-deadline:
			t.Fatalf("timed out after reading %d/%d bytes", len(got), total)
		default:
		}
		n, err := r.Read(buf)
		if err != 0 {
			t.Fatalf("Read failed: %d", err)
		}
		got = append(got, buf[:n]...)
	}

	if err := <-writeErr; err != 0 {
		t.Errorf("Write failed: %d", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], payload[i])
		}
	}
}
