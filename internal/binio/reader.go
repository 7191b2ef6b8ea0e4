// Package binio implements the little-endian cursor used to decode and encode
// VPK directory structures.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnexpectedEnd is matched by every read that needs more bytes than remain.
var ErrUnexpectedEnd = errors.New("unexpected end of data")

// EndError reports a short read. It matches ErrUnexpectedEnd.
type EndError struct {
	Pos  int // cursor position when the read was attempted
	Want int // bytes requested (-1 for an unterminated string)
	Have int // bytes remaining
}

func (e *EndError) Error() string {
	if e.Want < 0 {
		return fmt.Sprintf("unterminated string at %d (%d bytes left): %v", e.Pos, e.Have, ErrUnexpectedEnd)
	}
	return fmt.Sprintf("need %d bytes at %d, have %d: %v", e.Want, e.Pos, e.Have, ErrUnexpectedEnd)
}

func (e *EndError) Is(target error) bool { return target == ErrUnexpectedEnd }

// Reader is a bounds-checked cursor over a borrowed byte slice. A failed read
// leaves the position unchanged.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of b. b is not copied.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Pos returns the current offset from the start of the buffer.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, &EndError{Pos: r.pos, Want: n, Have: r.Len()}
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Bytes returns the next n bytes as a sub-slice of the underlying buffer.
// Callers that keep the result past the buffer's lifetime must copy it.
func (r *Reader) Bytes(n int) ([]byte, error) { return r.take(n) }

func (r *Reader) U8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// CString reads a NUL-terminated string. The terminator is consumed but not
// returned.
func (r *Reader) CString() (string, error) {
	rest := r.buf[r.pos:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", &EndError{Pos: r.pos, Want: -1, Have: len(rest)}
	}
	s := string(rest[:i])
	r.pos += i + 1
	return s, nil
}

// LString reads a string prefixed by its u32 byte length.
func (r *Reader) LString() (string, error) {
	start := r.pos
	n, err := r.U32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		r.pos = start
		return "", err
	}
	return string(b), nil
}
