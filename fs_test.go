package vpk

import (
	"bytes"
	"errors"
	"io/fs"
	"time"

	"github.com/javi11/govpk/internal/binio"
)

// memFS is an in-memory FileSystem for tests and benchmarks.
type memFS struct{ files map[string][]byte }

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return memFileInfo{name: path, size: int64(len(data))}, nil
}

func (m memFS) Open(path string) (fs.File, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return &memFile{Reader: bytes.NewReader(data), name: path}, nil
}

type memFile struct {
	*bytes.Reader
	name string
}

func (m *memFile) Stat() (fs.FileInfo, error) {
	return memFileInfo{name: m.name, size: m.Size()}, nil
}
func (m *memFile) Close() error { return nil }

// slowMemFS hands out files without ReadAt whose reads return at most chunk
// bytes, so every positioned read goes through Seek. With hideSize the files
// cannot be stat'ed.
type slowMemFS struct {
	memFS
	chunk    int
	hideSize bool
}

func (s slowMemFS) Open(path string) (fs.File, error) {
	data, ok := s.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return &seekFile{r: bytes.NewReader(data), name: path, chunk: s.chunk, hideSize: s.hideSize}, nil
}

var errNoStat = errors.New("stat not supported")

type seekFile struct {
	r        *bytes.Reader
	name     string
	chunk    int
	hideSize bool
}

func (f *seekFile) Read(p []byte) (int, error) {
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.r.Read(p)
}
func (f *seekFile) Seek(off int64, whence int) (int64, error) { return f.r.Seek(off, whence) }
func (f *seekFile) Stat() (fs.FileInfo, error) {
	if f.hideSize {
		return nil, errNoStat
	}
	return memFileInfo{name: f.name, size: f.r.Size()}, nil
}
func (f *seekFile) Close() error { return nil }

type memFileInfo struct {
	name string
	size int64
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() fs.FileMode  { return 0 }
func (fi memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() any           { return nil }

// rawEntry is one hand encoded tree record.
type rawEntry struct {
	ext, dir, name string
	crc            uint32
	preload        []byte
	index          uint16
	offset, length uint32
	term           uint16 // zero means the real terminator
}

// dirEntry is a record whose chunk lives in the directory file and whose CRC
// matches payload.
func dirEntry(ext, dir, name string, offset uint32, payload string) rawEntry {
	return rawEntry{ext: ext, dir: dir, name: name, crc: Checksum([]byte(payload)), index: DirIndex, offset: offset, length: uint32(len(payload))}
}

// buildTree encodes entries in order, grouping consecutive runs that share an
// extension and directory.
func buildTree(entries ...rawEntry) []byte {
	w := binio.NewWriter(256)
	for i := 0; i < len(entries); {
		ext := entries[i].ext
		w.PutCString(treeString(ext))
		for i < len(entries) && entries[i].ext == ext {
			dir := entries[i].dir
			w.PutCString(treeString(dir))
			for i < len(entries) && entries[i].ext == ext && entries[i].dir == dir {
				e := entries[i]
				w.PutCString(treeString(e.name))
				w.PutU32(e.crc)
				w.PutU16(uint16(len(e.preload)))
				w.PutU16(e.index)
				w.PutU32(e.offset)
				w.PutU32(e.length)
				if e.term == 0 {
					e.term = entryTerminator
				}
				w.PutU16(e.term)
				w.PutBytes(e.preload)
				i++
			}
			w.PutU8(0)
		}
		w.PutU8(0)
	}
	w.PutU8(0)
	return w.Bytes()
}

// buildV1 assembles a version 1 directory file.
func buildV1(tree, data []byte) []byte {
	w := binio.NewWriter(headerSizeV1 + len(tree) + len(data))
	encodeHeader(w, Header{Signature: Signature, Version: Version1, TreeSize: uint32(len(tree))})
	w.PutBytes(tree)
	w.PutBytes(data)
	return w.Bytes()
}

// buildV2 assembles a version 2 directory file without MD5 sections.
func buildV2(tree, data []byte) []byte {
	w := binio.NewWriter(headerSizeV2 + len(tree) + len(data))
	encodeHeader(w, Header{Signature: Signature, Version: Version2, TreeSize: uint32(len(tree)), EmbeddedChunkSize: uint32(len(data))})
	w.PutBytes(tree)
	w.PutBytes(data)
	return w.Bytes()
}
