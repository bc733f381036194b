package corerpc

// hpack.go implements the restricted subset of HPACK (RFC 7541) this
// runtime needs: literal header fields without incremental indexing,
// looked up against the fixed static table only. There is no dynamic
// table and the encoder never Huffman-encodes — metadata on this wire is
// typically short, low-cardinality gRPC header names/values, where the
// static table hit rate matters far more than Huffman's few saved bytes,
// and skipping both dynamic indexing and Huffman keeps the codec free of
// the eviction/resizing state machine RFC 7541 §4 otherwise requires.
//
// The decoder does not accept Huffman-coded string literals either: a
// peer's H=1 literal is rejected with a CompressionError (see
// decodeString).

import "github.com/dgrr/corerpc/wireutil"

// HeaderField is one name/value pair of request, response, or trailer
// metadata.
type HeaderField struct {
	Name  string
	Value string
}

// staticTable is the fixed 61-entry table from RFC 7541 Appendix A. Only
// the name is used for lookups in this codec; a request for an entry with
// a pre-set value (e.g. :method: GET) still emits the value literally,
// since this codec never relies on full-match static indexing to avoid
// cross-referencing semantics no caller here depends on.
var staticTable = [...]HeaderField{
	{":authority", ""}, {":method", "GET"}, {":method", "POST"},
	{":path", "/"}, {":path", "/index.html"}, {":scheme", "http"},
	{":scheme", "https"}, {":status", "200"}, {":status", "204"},
	{":status", "206"}, {":status", "304"}, {":status", "400"},
	{":status", "404"}, {":status", "500"}, {"accept-charset", ""},
	{"accept-encoding", "gzip, deflate"}, {"accept-language", ""},
	{"accept-ranges", ""}, {"accept", ""}, {"access-control-allow-origin", ""},
	{"age", ""}, {"allow", ""}, {"authorization", ""},
	{"cache-control", ""}, {"content-disposition", ""}, {"content-encoding", ""},
	{"content-language", ""}, {"content-length", ""}, {"content-location", ""},
	{"content-range", ""}, {"content-type", ""}, {"cookie", ""},
	{"date", ""}, {"etag", ""}, {"expect", ""}, {"expires", ""},
	{"from", ""}, {"host", ""}, {"if-match", ""}, {"if-modified-since", ""},
	{"if-none-match", ""}, {"if-range", ""}, {"if-unmodified-since", ""},
	{"last-modified", ""}, {"link", ""}, {"location", ""},
	{"max-forwards", ""}, {"proxy-authenticate", ""}, {"proxy-authorization", ""},
	{"range", ""}, {"referer", ""}, {"refresh", ""}, {"retry-after", ""},
	{"server", ""}, {"set-cookie", ""}, {"strict-transport-security", ""},
	{"transfer-encoding", ""}, {"user-agent", ""}, {"vary", ""},
	{"via", ""}, {"www-authenticate", ""},
}

// staticNameIndex finds the lowest static table index whose name matches.
// Returns 0, false if none does.
func staticNameIndex(name string) (int, bool) {
	for i, f := range staticTable {
		if wireutil.EqualFold(wireutil.S2B(f.Name), wireutil.S2B(name)) {
			return i + 1, true
		}
	}
	return 0, false
}

// encodeInteger appends an HPACK integer (RFC 7541 §5.1) to dst, using the
// low prefixBits of dst's last appended byte (already written by the
// caller with the representation's type bits set) for the first part of
// the value. prefixBits must be in [1,7].
func encodeInteger(dst []byte, prefixBits uint, n uint64) []byte {
	max := uint64(1<<prefixBits) - 1
	if n < max {
		dst[len(dst)-1] |= byte(n)
		return dst
	}

	dst[len(dst)-1] |= byte(max)
	n -= max
	for n >= 128 {
		dst = append(dst, byte(n%128+128))
		n /= 128
	}
	return append(dst, byte(n))
}

// decodeInteger decodes an HPACK integer starting at b[0], whose low
// prefixBits already hold the first part of the value. It returns the
// value and the number of bytes consumed.
//
// The continuation loop is bounded at m<=28: HPACK integers on this wire
// never need to exceed uint32 range (header names/values are bounded well
// below 2^32 bytes), so a peer sending a longer continuation sequence is
// rejected as malformed rather than risking silent overflow.
func decodeInteger(b []byte, prefixBits uint) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrHPACKMalformed
	}
	max := uint64(1<<prefixBits) - 1
	n := uint64(b[0]) & max
	if n < max {
		return n, 1, nil
	}

	var m uint
	i := 1
	for {
		if i >= len(b) {
			return 0, 0, ErrHPACKMalformed
		}
		octet := b[i]
		n += uint64(octet&0x7f) << m
		i++
		if octet&0x80 == 0 {
			break
		}
		m += 7
		if m > 28 {
			return 0, 0, ErrHPACKMalformed
		}
	}
	return n, i, nil
}

// encodeString appends an HPACK string literal (RFC 7541 §5.2) without
// Huffman coding: an H=0 length prefix followed by the raw bytes.
func encodeString(dst []byte, s string) []byte {
	dst = append(dst, 0) // H=0, length prefix starts here
	dst = encodeInteger(dst, 7, uint64(len(s)))
	return append(dst, s...)
}

// decodeString decodes an HPACK string literal starting at b[0], returning
// the value and the number of bytes consumed. Huffman-coded strings
// (H=1) are rejected: this codec's peers are only ever this runtime's own
// encoder, which never sets H.
func decodeString(b []byte) (string, int, error) {
	if len(b) == 0 {
		return "", 0, ErrHPACKMalformed
	}
	huffman := b[0]&0x80 != 0
	if huffman {
		return "", 0, newTransportError(CompressionError, "Huffman-coded HPACK string literal not supported")
	}

	length, n, err := decodeInteger(b, 7)
	if err != nil {
		return "", 0, err
	}
	total := n + int(length)
	if total > len(b) {
		return "", 0, ErrHPACKMalformed
	}
	return string(b[n:total]), total, nil
}

// encodeHeaderField appends one literal-header-field-without-indexing
// representation (RFC 7541 §6.2.2) for f to dst.
func encodeHeaderField(dst []byte, f HeaderField) []byte {
	if idx, ok := staticNameIndex(f.Name); ok {
		dst = append(dst, 0x00) // 0000 pattern, name indexed below
		dst = encodeInteger(dst, 4, uint64(idx))
	} else {
		dst = append(dst, 0x00)
		dst = encodeString(dst, f.Name)
	}
	return encodeString(dst, f.Value)
}

// EncodeMetadata HPACK-encodes md in order into a fresh header block.
func EncodeMetadata(md Metadata) []byte {
	var dst []byte
	for _, f := range md {
		dst = encodeHeaderField(dst, f)
	}
	return dst
}

// DecodeMetadata decodes a full header block into ordered metadata,
// preserving the wire order and any binary ("-bin" suffixed) values
// verbatim.
func DecodeMetadata(block []byte) (Metadata, error) {
	var md Metadata
	for len(block) > 0 {
		first := block[0]
		if first&0xc0 == 0 {
			// 0000xxxx literal without indexing, or 0001xxxx never indexed;
			// both are treated identically here since this codec has no
			// dynamic table to protect from never-indexed fields.
		} else {
			return nil, newTransportError(CompressionError, "unsupported HPACK representation")
		}

		nameIdxOrZero := first & 0x0f
		var name string
		var consumed int
		if nameIdxOrZero != 0 {
			idx, n, err := decodeInteger(block, 4)
			if err != nil {
				return nil, err
			}
			if idx == 0 || int(idx) > len(staticTable) {
				return nil, ErrHPACKMalformed
			}
			name = staticTable[idx-1].Name
			consumed = n
		} else {
			idx, n, err := decodeInteger(block, 4)
			if err != nil {
				return nil, err
			}
			_ = idx // always 0, name follows as a literal
			s, sn, err := decodeString(block[n:])
			if err != nil {
				return nil, err
			}
			name = s
			consumed = n + sn
		}

		value, vn, err := decodeString(block[consumed:])
		if err != nil {
			return nil, err
		}
		consumed += vn

		md = append(md, HeaderField{Name: name, Value: value})
		block = block[consumed:]
	}
	return md, nil
}
