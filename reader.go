package vpk

import (
	"bytes"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// EntryReader streams one entry's payload: the preload block first, then the
// chunk. It counts bytes and checksums them as they pass; reaching the end of
// the chunk early is reported as ErrTruncatedPayload instead of io.EOF.
type EntryReader struct {
	entry   Entry
	archive string
	src     source
	r       io.Reader
	crc     hash.Hash32
	n       int64
	err     error
}

func newEntryReader(archive string, e Entry, src source) *EntryReader {
	parts := []io.Reader{bytes.NewReader(e.preload)}
	if e.Length > 0 {
		parts = append(parts, io.NewSectionReader(src.r, src.base, int64(e.Length)))
	}
	return &EntryReader{
		entry:   e,
		archive: archive,
		src:     src,
		r:       io.MultiReader(parts...),
		crc:     crc32.NewIEEE(),
	}
}

// Entry returns the entry being read.
func (er *EntryReader) Entry() Entry { return er.entry }

func (er *EntryReader) Read(p []byte) (int, error) {
	if er.err != nil {
		return 0, er.err
	}
	n, err := er.r.Read(p)
	if n > 0 {
		er.crc.Write(p[:n])
		er.n += int64(n)
	}
	switch {
	case errors.Is(err, io.EOF):
		if er.n != er.entry.Size() {
			er.err = er.truncated()
		} else {
			er.err = io.EOF
		}
	case err != nil:
		er.err = newError("read", ErrIO, er.archive, er.offset(), err).withEntry(er.entry.Path).withPart(er.src.path)
	}
	return n, er.err
}

// offset is the absolute position in the part file the reader has reached.
func (er *EntryReader) offset() int64 {
	chunkRead := er.n - int64(er.entry.PreloadSize)
	if chunkRead < 0 {
		chunkRead = 0
	}
	return er.src.base + chunkRead
}

func (er *EntryReader) truncated() error {
	cause := fmt.Errorf("payload ended after %d of %d bytes", er.n, er.entry.Size())
	return newError("read", ErrTruncatedPayload, er.archive, er.offset(), cause).withEntry(er.entry.Path).withPart(er.src.path)
}

// BytesRead is the number of payload bytes delivered so far.
func (er *EntryReader) BytesRead() int64 { return er.n }

// Sum32 is the CRC32 of the bytes delivered so far.
func (er *EntryReader) Sum32() uint32 { return er.crc.Sum32() }

// Verify compares the running checksum with the stored one. It is meaningful
// once the reader has returned io.EOF.
func (er *EntryReader) Verify() VerifyResult {
	got := er.crc.Sum32()
	return VerifyResult{Path: er.entry.Path, Expected: er.entry.CRC, Actual: got, OK: got == er.entry.CRC}
}
