package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeString(t *testing.T) {
	assert.Equal(t, "OK", CodeOK.String())
	assert.Equal(t, "DEADLINE_EXCEEDED", CodeDeadlineExceeded.String())
	assert.Equal(t, "UNAUTHENTICATED", CodeUnauthenticated.String())
	assert.Equal(t, "UNKNOWN", Code(999).String())
}

func TestCallErrorString(t *testing.T) {
	assert.Equal(t, "OK", CallOK.String())
	assert.Equal(t, "ALREADY_FINISHED", CallErrorAlreadyFinished.String())
	assert.EqualError(t, CallErrorTooManyOps, "rpc: TOO_MANY_OPERATIONS")
}

func TestByteBufferAcquireRelease(t *testing.T) {
	bb := NewByteBufferFromBytes([]byte("hello"))
	assert.Equal(t, []byte("hello"), bb.Bytes())
	bb.Release()
}
