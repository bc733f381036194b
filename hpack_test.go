package corerpc

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeIntegerRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 30, 31, 32, 127, 128, 254, 255, 256, 1 << 20, 1<<32 - 2}

	for prefix := uint(1); prefix <= 7; prefix++ {
		for _, v := range values {
			dst := []byte{0}
			dst = encodeInteger(dst, prefix, v)

			got, n, err := decodeInteger(dst, prefix)
			if err != nil {
				t.Fatalf("prefix=%d value=%d: %v", prefix, v, err)
			}
			if got != v {
				t.Fatalf("prefix=%d value=%d: got %d", prefix, v, got)
			}
			if n != len(dst) {
				t.Fatalf("prefix=%d value=%d: consumed %d want %d", prefix, v, n, len(dst))
			}
		}
	}
}

func TestEncodeDecodeStringRoundTrip(t *testing.T) {
	cases := []string{"", "a", "grpc-status", "a longer value with spaces and 123"}
	for _, s := range cases {
		dst := encodeString(nil, s)
		got, n, err := decodeString(dst)
		if err != nil {
			t.Fatalf("%q: %v", s, err)
		}
		if got != s {
			t.Fatalf("got %q want %q", got, s)
		}
		if n != len(dst) {
			t.Fatalf("consumed %d want %d", n, len(dst))
		}
	}
}

func TestEncodeDecodeMetadataRoundTrip(t *testing.T) {
	md := Metadata{
		{Name: ":path", Value: "/echo.Echo/Say"},
		{Name: "content-type", Value: "application/grpc"},
		{Name: "x-custom-bin", Value: string([]byte{0x00, 0xff, 0x10})},
		{Name: "x-custom", Value: "v1"},
		{Name: "x-custom", Value: "v2"},
	}

	block := EncodeMetadata(md)
	got, err := DecodeMetadata(block)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(got) != len(md) {
		t.Fatalf("got %d fields, want %d", len(got), len(md))
	}
	for i := range md {
		if got[i].Name != md[i].Name || got[i].Value != md[i].Value {
			t.Fatalf("field %d: got %+v want %+v", i, got[i], md[i])
		}
	}
}

func TestDecodeHuffmanRejected(t *testing.T) {
	// Name by static index, value as an H=1 (Huffman) string literal:
	// 0x80 | length, followed by the (here bogus) coded bytes.
	block := []byte{byte(staticIndexFor(":path")), 0x81, 'x'}
	_, err := DecodeMetadata(block)
	if err == nil {
		t.Fatal("expected error decoding Huffman-coded literal")
	}
}

func staticIndexFor(name string) int {
	idx, _ := staticNameIndex(name)
	return idx
}

func TestIntegerOverflowGuardRejectsTooLongContinuation(t *testing.T) {
	// prefix=4, all continuation octets with the high bit set and no
	// terminator: must hit the m<=28 guard rather than loop forever.
	b := append([]byte{0x0f}, bytes.Repeat([]byte{0xff}, 10)...)
	_, _, err := decodeInteger(b, 4)
	if err == nil {
		t.Fatal("expected malformed integer error")
	}
}
