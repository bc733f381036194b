// Package wireutil holds the small byte-fiddling helpers shared by the
// framer and HPACK codec: big-endian integer packing, buffer resizing
// without extra allocations, and ASCII case folding for header names.
package wireutil

import (
	"reflect"
	"unsafe"
)

// PutUint24 writes the 24-bit big-endian length field used by the HTTP/2
// frame header.
func PutUint24(b []byte, n uint32) {
	_ = b[2] // bound check hint
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

// Uint24 reads a 24-bit big-endian length field.
func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutUint32 writes a 32-bit big-endian integer.
func PutUint32(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

// Uint32 reads a 32-bit big-endian integer.
func Uint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// AppendUint32 appends n to dst in big-endian order.
func AppendUint32(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// StreamID masks off the reserved high bit of a received stream identifier
// instead of rejecting it, per RFC 7540 §4.1: "this bit is reserved... and
// MUST be ignored when receiving".
func StreamID(b []byte) uint32 {
	return Uint32(b) & (1<<31 - 1)
}

// Resize grows b (reusing its backing array when possible) so that it has
// exactly neededLen bytes, without zeroing bytes beyond the old length.
func Resize(b []byte, neededLen int) []byte {
	b = b[:cap(b)]
	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}
	return b[:neededLen]
}

// EqualFold reports whether a and b are equal ASCII header names, ignoring
// case, without the allocation bytes.EqualFold(strings.ToLower(...)) would
// cost on the hot decode path.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// B2S converts a byte slice to a string without copying. The slice must not
// be mutated while the returned string is alive.
func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2B converts a string to a byte slice without copying. The returned slice
// must not be mutated.
func S2B(s string) []byte {
	sh := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh := reflect.SliceHeader{Data: sh.Data, Len: sh.Len, Cap: sh.Len}
	return *(*[]byte)(unsafe.Pointer(&bh))
}
