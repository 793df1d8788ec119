package ringbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	b := New(8, 0)
	require.NoError(t, b.PutString("hello world"))
	assert.Equal(t, 11, b.Len())

	out := make([]byte, 5)
	n := b.GetBlock(out)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, 6, b.Len())
}

func TestCompactReclaimsConsumedSpace(t *testing.T) {
	b := New(16, 0)
	require.NoError(t, b.PutString("0123456789abcdef"))
	b.Skip(10)
	assert.Equal(t, 6, b.Len())
	b.Compact()
	assert.Equal(t, 0, b.rpos)
	assert.Equal(t, 6, b.wpos)
	assert.Equal(t, "abcdef", string(b.Bytes()))
}

func TestReserveGrowsWithinCeiling(t *testing.T) {
	b := New(4, 64)
	require.NoError(t, b.PutString("aaaa"))
	require.NoError(t, b.Reserve(32))
	assert.GreaterOrEqual(t, b.Cap(), 36)
}

func TestReserveFailsPastCeiling(t *testing.T) {
	b := New(4, 8)
	err := b.Reserve(100)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestIndexByteAndIndex(t *testing.T) {
	b := New(32, 0)
	require.NoError(t, b.PutString("GET /x HTTP/1.1\r\n"))
	assert.Equal(t, 3, b.IndexByte(' '))
	assert.Equal(t, 15, b.Index([]byte("\r\n")))
	assert.Equal(t, -1, b.Index([]byte("notfound")))
}

func TestWriteToPartialWrite(t *testing.T) {
	b := New(32, 0)
	require.NoError(t, b.PutString("0123456789"))

	w := &shortWriter{limit: 4}
	n, err := b.WriteTo(w)
	assert.Equal(t, int64(4), n)
	assert.ErrorIs(t, err, ErrWouldBlock)
	assert.Equal(t, 6, b.Len())
	assert.Equal(t, "456789", string(b.Bytes()))

	n, err = b.WriteTo(&bytes.Buffer{})
	assert.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, 0, b.Len())
}

type shortWriter struct {
	limit int
	wrote int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	n := len(p)
	if w.limit < n {
		n = w.limit
	}
	w.wrote += n
	return n, nil
}
