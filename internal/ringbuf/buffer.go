// Package ringbuf implements the growable cursor buffer used to parse HTTP
// requests and assemble responses without copying the unread tail on every
// append.
package ringbuf

import (
	"errors"
	"io"
)

// ErrOutOfMemory is returned by Reserve when growing the buffer would exceed
// MaxCapacity.
var ErrOutOfMemory = errors.New("ringbuf: growth exceeds configured ceiling")

// ErrWouldBlock signals a non-fatal short write: the caller must retry with
// the un-drained bytes still in the buffer.
var ErrWouldBlock = errors.New("ringbuf: write would block")

// DefaultMaxCapacity bounds buffer growth when the caller does not set one.
const DefaultMaxCapacity = 4 << 20 // 4 MiB

// Buffer is a byte buffer with four cursors: the start of the backing array,
// a read cursor (rpos) marking the first unread byte, a write cursor (wpos)
// marking the first free byte, and the capacity of the backing array. Bytes
// in [rpos, wpos) are unread; bytes in [wpos, cap) are free space at the
// tail. Get* calls advance rpos; Put* calls advance wpos.
type Buffer struct {
	data        []byte
	rpos        int
	wpos        int
	maxCapacity int
}

// New allocates a Buffer with the given initial capacity. maxCapacity <= 0
// falls back to DefaultMaxCapacity.
func New(initialCapacity, maxCapacity int) *Buffer {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	if initialCapacity <= 0 {
		initialCapacity = 256
	}
	return &Buffer{
		data:        make([]byte, initialCapacity),
		maxCapacity: maxCapacity,
	}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int { return b.wpos - b.rpos }

// Cap returns the capacity of the backing array.
func (b *Buffer) Cap() int { return len(b.data) }

// Room returns the number of free bytes at the tail before a grow/compact is
// needed.
func (b *Buffer) Room() int { return len(b.data) - b.wpos }

// Reset drops all buffered data without releasing the backing array.
func (b *Buffer) Reset() {
	b.rpos = 0
	b.wpos = 0
}

// Bytes returns the unread region. The slice aliases the buffer's backing
// array and is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte { return b.data[b.rpos:b.wpos] }

// Compact slides the unread region to the front of the backing array,
// reclaiming the space already consumed from the head.
func (b *Buffer) Compact() {
	if b.rpos == 0 {
		return
	}
	n := copy(b.data, b.data[b.rpos:b.wpos])
	b.rpos = 0
	b.wpos = n
}

// Reserve ensures at least n free bytes are available at the tail,
// compacting first and growing (doubling) only if compaction is not enough.
// Returns ErrOutOfMemory if satisfying the request would exceed
// maxCapacity.
func (b *Buffer) Reserve(n int) error {
	if b.Room() >= n {
		return nil
	}
	b.Compact()
	if b.Room() >= n {
		return nil
	}
	needed := b.wpos + n
	if needed > b.maxCapacity {
		return ErrOutOfMemory
	}
	newCap := len(b.data)
	if newCap == 0 {
		newCap = 256
	}
	for newCap < needed {
		newCap *= 2
	}
	if newCap > b.maxCapacity {
		newCap = b.maxCapacity
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.wpos])
	b.data = grown
	return nil
}

// PutByte appends a single byte, growing as needed.
func (b *Buffer) PutByte(c byte) error {
	if err := b.Reserve(1); err != nil {
		return err
	}
	b.data[b.wpos] = c
	b.wpos++
	return nil
}

// PutString appends s, growing as needed.
func (b *Buffer) PutString(s string) error {
	return b.PutBlock([]byte(s))
}

// PutBlock appends p, growing as needed.
func (b *Buffer) PutBlock(p []byte) error {
	if err := b.Reserve(len(p)); err != nil {
		return err
	}
	n := copy(b.data[b.wpos:], p)
	b.wpos += n
	return nil
}

// GetByte consumes and returns a single byte. ok is false if no unread byte
// remains.
func (b *Buffer) GetByte() (c byte, ok bool) {
	if b.rpos >= b.wpos {
		return 0, false
	}
	c = b.data[b.rpos]
	b.rpos++
	return c, true
}

// GetBlock consumes up to len(p) bytes into p, returning the count consumed.
func (b *Buffer) GetBlock(p []byte) int {
	n := copy(p, b.data[b.rpos:b.wpos])
	b.rpos += n
	return n
}

// Skip discards n unread bytes without copying them out.
func (b *Buffer) Skip(n int) {
	b.rpos += n
	if b.rpos > b.wpos {
		b.rpos = b.wpos
	}
}

// IndexByte returns the offset of c within the unread region, or -1.
func (b *Buffer) IndexByte(c byte) int {
	for i := b.rpos; i < b.wpos; i++ {
		if b.data[i] == c {
			return i - b.rpos
		}
	}
	return -1
}

// Index returns the offset of the first occurrence of sep within the unread
// region, or -1.
func (b *Buffer) Index(sep []byte) int {
	hay := b.data[b.rpos:b.wpos]
	if len(sep) == 0 || len(sep) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(sep) <= len(hay); i++ {
		for j := range sep {
			if hay[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// ReadFrom fills the tail of the buffer from r, growing as needed. It
// returns the number of bytes appended. Implements a subset of io.ReaderFrom
// tailored to a single bounded read rather than reading to EOF, since a
// socket read must return control to the caller's state machine as soon as
// data arrives.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	if err := b.Reserve(4096); err != nil {
		return 0, err
	}
	n, err := r.Read(b.data[b.wpos:])
	b.wpos += n
	return int64(n), err
}

// WriteTo drains unread bytes to w, advancing rpos by however much was
// written. Unlike io.WriterTo it does not loop until the buffer is empty: a
// short write (n < Len()) is reported via ErrWouldBlock so the caller can
// re-enter later with the undrained tail intact.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	n, err := w.Write(b.data[b.rpos:b.wpos])
	b.rpos += n
	if err != nil {
		return int64(n), err
	}
	if b.Len() > 0 {
		return int64(n), ErrWouldBlock
	}
	b.Reset()
	return int64(n), nil
}
