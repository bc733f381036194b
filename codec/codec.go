// Package codec implements the message compression collaborator this
// runtime's Data frames negotiate via the compressed-flag byte: identity
// (no-op), gzip and deflate, the latter two backed by klauspost/compress for its pooled,
// allocation-light encoders rather than stdlib compress/gzip.
package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Name identifies a negotiated compression algorithm, sent as the
// grpc-encoding metadata value.
type Name string

const (
	Identity Name = "identity"
	Gzip     Name = "gzip"
	Deflate  Name = "deflate"
)

// Codec compresses and decompresses message payloads. Implementations
// must be safe for concurrent use.
type Codec interface {
	Name() Name
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// ByName returns the registered Codec for name, or identityCodec if name
// is unrecognized: an unknown grpc-encoding is never fatal, since the peer
// can always fall back to sending uncompressed.
func ByName(name Name) Codec {
	switch name {
	case Gzip:
		return gzipCodec{}
	case Deflate:
		return deflateCodec{}
	default:
		return identityCodec{}
	}
}

type identityCodec struct{}

func (identityCodec) Name() Name                           { return Identity }
func (identityCodec) Compress(src []byte) ([]byte, error)   { return src, nil }
func (identityCodec) Decompress(src []byte) ([]byte, error) { return src, nil }

type gzipCodec struct{}

func (gzipCodec) Name() Name { return Gzip }

func (gzipCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type deflateCodec struct{}

func (deflateCodec) Name() Name { return Deflate }

func (deflateCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (deflateCodec) Decompress(src []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()
	return io.ReadAll(r)
}
