package vpk

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileSystem abstracts minimal operations needed to open archives and discover parts.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Open(path string) (fs.File, error)
}

type osFS struct{}

func (osFS) Stat(p string) (fs.FileInfo, error) { return os.Stat(p) }
func (osFS) Open(p string) (fs.File, error)     { return os.Open(p) }

var defaultFS osFS

// readerAtFile is what the locator needs from an opened archive file.
type readerAtFile interface {
	io.ReaderAt
	io.Closer
}

// seekReaderAt serializes Seek+Read pairs so a plain io.ReadSeeker can serve
// concurrent positioned reads.
type seekReaderAt struct {
	mu sync.Mutex
	f  fs.File
	rs io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

func (s *seekReaderAt) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

var errNotPositional = errors.New("file supports neither ReadAt nor Seek")

// asReaderAt adapts f for positioned reads.
func asReaderAt(f fs.File) (readerAtFile, error) {
	if ra, ok := f.(readerAtFile); ok {
		return ra, nil
	}
	if rs, ok := f.(io.ReadSeeker); ok {
		return &seekReaderAt{f: f, rs: rs}, nil
	}
	return nil, errNotPositional
}

func isEOF(err error) bool {
	return err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// fileSize stats f, returning -1 when the size is unknown.
func fileSize(f fs.File) int64 {
	st, err := f.Stat()
	if err != nil {
		return -1
	}
	return st.Size()
}
