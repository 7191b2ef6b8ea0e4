package binio

import "encoding/binary"

// Writer appends little-endian values to a growing buffer. It mirrors Reader.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity preallocated for size bytes.
func NewWriter(size int) *Writer { return &Writer{buf: make([]byte, 0, size)} }

// Bytes returns the encoded bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Write implements io.Writer; it never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) PutU8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) PutU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) PutU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) PutU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *Writer) PutI8(v int8)    { w.PutU8(uint8(v)) }
func (w *Writer) PutI16(v int16)  { w.PutU16(uint16(v)) }
func (w *Writer) PutI32(v int32)  { w.PutU32(uint32(v)) }
func (w *Writer) PutI64(v int64)  { w.PutU64(uint64(v)) }

// PutBytes appends b verbatim.
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// PutCString appends s followed by a NUL byte. s must not contain NUL.
func (w *Writer) PutCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// PutLString appends s prefixed by its u32 byte length.
func (w *Writer) PutLString(s string) {
	w.PutU32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}
