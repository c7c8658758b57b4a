package pagetable

import (
	"github.com/RainaX/rCore-v3/internal/config"
	"github.com/RainaX/rCore-v3/internal/defs"
)

// TranslatedByteBuffer splits [ptr, ptr+length) into the kernel slices
// backing each physical page it crosses, per spec.md §4.2. Every page
// in the range must already be mapped; callers are expected to have
// checked with IsMapped first, matching the teacher's "panics in
// kernel debug" contract for an unmapped page found here.
func (t *Table) TranslatedByteBuffer(ptr uintptr, length int) [][]byte {
	if length == 0 {
		return nil
	}
	var out [][]byte
	start := ptr
	end := ptr + uintptr(length)
	for start < end {
		vpn := VPN(start >> config.PGShift)
		pte, ok := t.Translate(vpn)
		if !ok {
			panic("pagetable: translated_byte_buffer hit an unmapped page")
		}
		pageEnd := (start &^ uintptr(config.PGMask)) + config.PGSize
		if pageEnd > end {
			pageEnd = end
		}
		offInPage := start & uintptr(config.PGMask)
		endInPage := offInPage + (pageEnd - start)
		frameBytes := t.alloc.Bytes(pte.Frame())
		out = append(out, frameBytes[offInPage:endInPage])
		start = pageEnd
	}
	return out
}

// TranslatedStr walks a NUL-terminated user string page by page,
// returning once the terminator is found or failing if a page is
// unmapped.
func (t *Table) TranslatedStr(ptr uintptr) (string, defs.Err_t) {
	var out []byte
	va := ptr
	for {
		vpn := VPN(va >> config.PGShift)
		pte, ok := t.Translate(vpn)
		if !ok {
			return "", -defs.EFAULT
		}
		frameBytes := t.alloc.Bytes(pte.Frame())
		off := va & uintptr(config.PGMask)
		for ; off < config.PGSize; off++ {
			c := frameBytes[off]
			if c == 0 {
				return string(out), 0
			}
			out = append(out, c)
		}
		va = (va &^ uintptr(config.PGMask)) + config.PGSize
	}
}

// CopyOut copies src into user memory starting at uva, one page-sized
// chunk at a time.
func (t *Table) CopyOut(uva uintptr, src []byte) defs.Err_t {
	dsts := t.TranslatedByteBuffer(uva, len(src))
	off := 0
	for _, d := range dsts {
		off += copy(d, src[off:])
	}
	return 0
}

// CopyIn copies from user memory starting at uva into dst.
func (t *Table) CopyIn(uva uintptr, dst []byte) defs.Err_t {
	srcs := t.TranslatedByteBuffer(uva, len(dst))
	off := 0
	for _, s := range srcs {
		off += copy(dst[off:], s)
	}
	return 0
}
