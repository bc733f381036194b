package corerpc

import "github.com/dgrr/corerpc/wireutil"

// Metadata is an ordered list of header fields, preserving duplicates and
// wire order exactly as sent: gRPC metadata is not a map, and a field
// whose name ends in "-bin" carries an opaque binary value that callers
// must not treat as text.
type Metadata []HeaderField

// Get returns the value of the first field named key, and whether one was
// found. Metadata names are compared case-insensitively per HTTP/2 §8.1.2.
func (md Metadata) Get(key string) (string, bool) {
	for _, f := range md {
		if wireutil.EqualFold(wireutil.S2B(f.Name), wireutil.S2B(key)) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value associated with key, in wire order.
func (md Metadata) Values(key string) []string {
	var out []string
	for _, f := range md {
		if wireutil.EqualFold(wireutil.S2B(f.Name), wireutil.S2B(key)) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Add appends a field without removing any existing field of the same
// name, matching how gRPC metadata accumulates repeated keys.
func (md Metadata) Add(key, value string) Metadata {
	return append(md, HeaderField{Name: key, Value: value})
}

// Clone returns a deep copy of md.
func (md Metadata) Clone() Metadata {
	out := make(Metadata, len(md))
	copy(out, md)
	return out
}
