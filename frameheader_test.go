package corerpc

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameHeaderWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.Type = FrameSettings
	fr.Flags = FlagAck
	fr.StreamID = 0
	fr.SetPayload(nil)

	if err := fr.WriteTo(bw); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fr2 := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr2)
	if err := fr2.ReadFrom(bufio.NewReader(&buf), FrameDefaultMaxLen); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if fr2.Type != FrameSettings || fr2.Flags != FlagAck || fr2.StreamID != 0 {
		t.Fatalf("got %+v", fr2)
	}
}

func TestFrameHeaderRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)
	fr.Type = FrameData
	fr.SetPayload(make([]byte, 100))
	if err := fr.WriteTo(bw); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	bw.Flush()

	fr2 := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr2)
	err := fr2.ReadFrom(bufio.NewReader(&buf), 50)
	if err != ErrFrameTooLarge {
		t.Fatalf("got %v want ErrFrameTooLarge", err)
	}
}

func TestStreamIDMasksReservedBit(t *testing.T) {
	b := []byte{0x80, 0x00, 0x00, 0x05}
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	var header [9]byte
	header[3] = byte(FrameWindowUpdate)
	copy(header[5:9], b)
	var buf bytes.Buffer
	buf.Write(header[:])
	buf.Write([]byte{0, 0, 0, 10})

	if err := fr.ReadFrom(bufio.NewReader(&buf), FrameDefaultMaxLen); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if fr.StreamID != 5 {
		t.Fatalf("got %d want 5", fr.StreamID)
	}
}
