package vpk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Archive is an open VPK. The catalog is fixed at Open; readers and extraction
// may run concurrently, also with Close, after which pending reads fail.
type Archive struct {
	path    string
	fsys    FileSystem
	header  Header
	catalog *Catalog
	dir     readerAtFile
	dirSize int64
	loc     *locator
	logger  *log.Logger
	closed  atomic.Bool
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	logger *log.Logger
}

// WithLogger routes debug and warning messages to l. Without it the archive
// logs nothing.
func WithLogger(l *log.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

func discardLogger() *log.Logger { return log.New(io.Discard) }

// Open opens the directory file at path on the local filesystem.
func Open(path string, opts ...Option) (*Archive, error) {
	return OpenFS(defaultFS, path, opts...)
}

// OpenFS works like Open but uses provided FileSystem for the directory file and
// every part (useful for virtual / in-memory tests).
func OpenFS(fsys FileSystem, path string, opts ...Option) (*Archive, error) {
	o := openOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = discardLogger()
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, newError("open", ErrIO, path, -1, err)
	}
	r, err := asReaderAt(f)
	if err != nil {
		_ = f.Close()
		return nil, newError("open", ErrIO, path, -1, err)
	}
	a, err := load(fsys, path, r, fileSize(f), o.logger)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return a, nil
}

// load reads the header and tree and builds the catalog. It either returns a
// complete Archive or an error, never a partial catalog.
func load(fsys FileSystem, path string, r readerAtFile, size int64, logger *log.Logger) (*Archive, error) {
	h, err := readHeader(r, path)
	if err != nil {
		return nil, err
	}
	if size >= 0 && h.DataOffset() > size {
		return nil, newError("parse", ErrMalformedDirectory, path, h.Size(),
			fmt.Errorf("tree block of %d bytes overruns %d byte file: %w", h.TreeSize, size, io.ErrUnexpectedEOF))
	}
	tree := make([]byte, h.TreeSize)
	n, err := r.ReadAt(tree, h.Size())
	if n < len(tree) {
		if isEOF(err) {
			return nil, newError("parse", ErrMalformedDirectory, path, h.Size()+int64(n),
				fmt.Errorf("tree block has %d of %d bytes: %w", n, h.TreeSize, io.ErrUnexpectedEOF))
		}
		return nil, newError("parse", ErrIO, path, h.Size(), err)
	}
	cat, err := parseTree(tree, h.Size(), path)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed directory", "archive", path, "version", h.Version, "tree", h.TreeSize, "entries", cat.Len())
	return &Archive{
		path:    path,
		fsys:    fsys,
		header:  h,
		catalog: cat,
		dir:     r,
		dirSize: size,
		loc:     newLocator(fsys, path, r, size, h, logger),
		logger:  logger,
	}, nil
}

// Path returns the directory file path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Header returns the decoded header.
func (a *Archive) Header() Header { return a.header }

// Catalog returns the immutable entry catalog.
func (a *Archive) Catalog() *Catalog { return a.catalog }

// Entries yields the entries matching f.
func (a *Archive) Entries(f Filter) iter.Seq[Entry] { return a.catalog.Entries(f) }

// Lookup finds an entry by logical path.
func (a *Archive) Lookup(path string) (Entry, bool) { return a.catalog.Lookup(path) }

// OpenedParts lists the part files opened so far.
func (a *Archive) OpenedParts() []string { return a.loc.openedParts() }

func (a *Archive) entry(op, path string) (Entry, error) {
	if a.closed.Load() {
		return Entry{}, newError(op, ErrClosed, a.path, -1, nil)
	}
	e, ok := a.catalog.Lookup(path)
	if !ok {
		return Entry{}, newError(op, ErrNotFound, a.path, -1, nil).withEntry(CleanPath(path))
	}
	return e, nil
}

// OpenEntry returns a streaming reader for the entry at path.
func (a *Archive) OpenEntry(path string) (*EntryReader, error) {
	e, err := a.entry("read", path)
	if err != nil {
		return nil, err
	}
	return a.openEntry(e)
}

func (a *Archive) openEntry(e Entry) (*EntryReader, error) {
	src, err := a.loc.resolve(e)
	if err != nil {
		var ve *Error
		if errors.As(err, &ve) {
			cp := *ve
			return nil, cp.withEntry(e.Path)
		}
		return nil, err
	}
	if src.size >= 0 && src.base+int64(e.Length) > src.size {
		return nil, newError("read", ErrTruncatedPayload, a.path, src.base, fmt.Errorf("chunk ends at %d, file has %d bytes", src.base+int64(e.Length), src.size)).
			withEntry(e.Path).withPart(src.path)
	}
	return newEntryReader(a.path, e, src), nil
}

// ReadEntry returns the full payload of the entry at path. It does not check
// the checksum.
func (a *Archive) ReadEntry(path string) ([]byte, error) {
	er, err := a.OpenEntry(path)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, er.entry.Size()))
	if _, err := buf.ReadFrom(er); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the directory file and every opened part. It is safe to call
// more than once.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	err := a.loc.close()
	if cerr := a.dir.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return newError("close", ErrIO, a.path, -1, err)
	}
	return nil
}
