package vpk

import (
	"errors"
	"io"
	"io/fs"
	"sync"

	"github.com/charmbracelet/log"
)

// partSlot holds one lazily opened part file. once guarantees a single open
// even when several readers hit the part at the same time; mu guards the
// fields once set so close can run alongside resolve.
type partSlot struct {
	once sync.Once
	path string

	mu   sync.Mutex
	r    readerAtFile
	size int64
	err  error
}

// locator maps archive indexes to readers. It owns every part it opens.
type locator struct {
	fsys    FileSystem
	dirPath string
	dir     readerAtFile
	dirSize int64
	header  Header
	logger  *log.Logger

	mu     sync.Mutex
	parts  map[uint16]*partSlot
	closed bool
}

func newLocator(fsys FileSystem, dirPath string, dir readerAtFile, dirSize int64, h Header, logger *log.Logger) *locator {
	return &locator{
		fsys:    fsys,
		dirPath: dirPath,
		dir:     dir,
		dirSize: dirSize,
		header:  h,
		logger:  logger,
		parts:   make(map[uint16]*partSlot),
	}
}

// source is a resolved chunk location.
type source struct {
	r    io.ReaderAt
	path string // file the chunk is read from
	base int64  // absolute offset of the chunk in that file
	size int64  // file size, -1 if unknown
}

// resolve returns the positioned reader for e's chunk bytes. A source resolved
// before close fails its reads once the part is closed.
func (l *locator) resolve(e Entry) (source, error) {
	if e.InDir() {
		return source{r: l.dir, path: l.dirPath, base: l.header.DataOffset() + int64(e.Offset), size: l.dirSize}, nil
	}
	slot, err := l.slot(e.ArchiveIndex)
	if err != nil {
		return source{}, err
	}
	slot.once.Do(func() { l.open(slot) })
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.err != nil {
		return source{}, slot.err
	}
	return source{r: slot.r, path: slot.path, base: int64(e.Offset), size: slot.size}, nil
}

func (l *locator) slot(idx uint16) (*partSlot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, newError("locate", ErrClosed, l.dirPath, -1, nil).withPart(PartPath(l.dirPath, idx))
	}
	s, ok := l.parts[idx]
	if !ok {
		s = &partSlot{path: PartPath(l.dirPath, idx)}
		l.parts[idx] = s
	}
	return s, nil
}

func (l *locator) open(s *partSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := l.fsys.Open(s.path)
	if err != nil {
		kind := ErrIO
		if errors.Is(err, fs.ErrNotExist) {
			kind = ErrMissingArchivePart
		}
		s.err = newError("locate", kind, l.dirPath, -1, err).withPart(s.path)
		return
	}
	r, err := asReaderAt(f)
	if err != nil {
		_ = f.Close()
		s.err = newError("locate", ErrIO, l.dirPath, -1, err).withPart(s.path)
		return
	}
	s.r = r
	s.size = fileSize(f)
	l.logger.Debug("opened part", "part", s.path, "size", s.size)
}

// close releases every opened part. The directory file is closed by the archive.
func (l *locator) close() error {
	l.mu.Lock()
	l.closed = true
	slots := make([]*partSlot, 0, len(l.parts))
	for idx, s := range l.parts {
		slots = append(slots, s)
		delete(l.parts, idx)
	}
	l.mu.Unlock()

	var errs []error
	for _, s := range slots {
		// Waits for an open in progress; marks slots that never ran.
		s.once.Do(func() {})
		s.mu.Lock()
		if s.r != nil {
			if err := s.r.Close(); err != nil {
				errs = append(errs, err)
			}
			s.r = nil
		}
		s.err = newError("locate", ErrClosed, l.dirPath, -1, nil).withPart(s.path)
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}

// openedParts returns the paths of parts opened so far.
func (l *locator) openedParts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, s := range l.parts {
		s.mu.Lock()
		if s.r != nil {
			out = append(out, s.path)
		}
		s.mu.Unlock()
	}
	return out
}
