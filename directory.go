package vpk

import (
	"errors"
	"fmt"

	"github.com/javi11/govpk/internal/binio"
)

// Directory tree layout:
//
//	for each extension:  ext\0
//	  for each path:     path\0
//	    for each file:   name\0 CRC(4) PRELOAD_LEN(2) INDEX(2) OFFSET(4) LENGTH(4) 0xFFFF(2) [preload bytes]
//	    \0               end of files for this path
//	  \0                 end of paths for this extension
//	\0                   end of tree
//
// A single space stands for an empty component (root path, no extension).

var errTrailingBytes = errors.New("bytes after tree terminator")

// parseTree decodes a directory tree. base is the absolute file offset of
// tree[0] and is used only for error context. Nothing is returned on error.
func parseTree(tree []byte, base int64, archive string) (*Catalog, error) {
	c := binio.NewReader(tree)
	cat := newCatalog()
	fail := func(cause error) *Error {
		return newError("parse", ErrMalformedDirectory, archive, base+int64(c.Pos()), cause)
	}
	for {
		ext, err := c.CString()
		if err != nil {
			return nil, fail(fmt.Errorf("read extension: %w", err))
		}
		if ext == "" {
			break
		}
		ext = normalizeTreeString(ext)
		for {
			dir, err := c.CString()
			if err != nil {
				return nil, fail(fmt.Errorf("read path for %q: %w", ext, err))
			}
			if dir == "" {
				break
			}
			dir = normalizeTreeString(dir)
			for {
				name, err := c.CString()
				if err != nil {
					return nil, fail(fmt.Errorf("read name in %q: %w", dir, err))
				}
				if name == "" {
					break
				}
				name = normalizeTreeString(name)
				e, err := readEntryRecord(c, base)
				e.Ext, e.Dir, e.Name = ext, dir, name
				e.Path = joinPath(ext, dir, name)
				if err != nil {
					var ve *Error
					if errors.As(err, &ve) {
						ve.Archive = archive
						return nil, ve.withEntry(e.Path)
					}
					return nil, fail(err).withEntry(e.Path)
				}
				if !cat.add(e) {
					return nil, newError("parse", ErrMalformedDirectory, archive, e.RecordOffset, ErrDuplicateEntry).withEntry(e.Path)
				}
			}
		}
	}
	if c.Len() != 0 {
		return nil, fail(fmt.Errorf("%w: %d", errTrailingBytes, c.Len()))
	}
	return cat, nil
}

// readEntryRecord reads the fixed record and the preload block that follows it.
func readEntryRecord(c *binio.Reader, base int64) (Entry, error) {
	e := Entry{RecordOffset: base + int64(c.Pos())}
	raw, err := c.Bytes(entryRecordSize)
	if err != nil {
		return e, fmt.Errorf("read entry record: %w", err)
	}
	rc := binio.NewReader(raw)
	e.CRC, _ = rc.U32()
	e.PreloadSize, _ = rc.U16()
	e.ArchiveIndex, _ = rc.U16()
	e.Offset, _ = rc.U32()
	e.Length, _ = rc.U32()
	term, _ := rc.U16()
	if term != entryTerminator {
		return e, &Error{
			Op:     "parse",
			Kind:   ErrMalformedDirectory,
			Offset: e.RecordOffset + entryRecordSize - 2,
			Err:    fmt.Errorf("entry terminator %#04x, want %#04x", term, entryTerminator),
		}
	}
	if e.ArchiveIndex > DirIndex {
		return e, &Error{
			Op:     "parse",
			Kind:   ErrMalformedDirectory,
			Offset: e.RecordOffset + 6,
			Err:    fmt.Errorf("archive index %#04x out of range", e.ArchiveIndex),
		}
	}
	if e.PreloadSize > 0 {
		pre, err := c.Bytes(int(e.PreloadSize))
		if err != nil {
			return e, fmt.Errorf("read preload: %w", err)
		}
		e.preload = append([]byte(nil), pre...)
	}
	return e, nil
}

// encodeEntryRecord is the inverse of readEntryRecord.
func encodeEntryRecord(w *binio.Writer, e Entry) {
	w.PutU32(e.CRC)
	w.PutU16(e.PreloadSize)
	w.PutU16(e.ArchiveIndex)
	w.PutU32(e.Offset)
	w.PutU32(e.Length)
	w.PutU16(entryTerminator)
	w.PutBytes(e.preload)
}
