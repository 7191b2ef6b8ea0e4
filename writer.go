package vpk

import (
	"bytes"
	"cmp"
	"crypto/md5"
	"fmt"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/javi11/govpk/internal/binio"
	"github.com/javi11/govpk/internal/fsutil"
)

// WriterOptions configures NewWriter.
type WriterOptions struct {
	// Version is 1 or 2; zero means 2.
	Version uint32
	// MaxPartSize caps the chunk bytes per numbered part. Zero stores every
	// chunk in the directory file.
	MaxPartSize int64
	// PreloadSize moves up to this many leading bytes of each entry into the
	// directory tree.
	PreloadSize int
	Logger      *log.Logger
}

type pendingEntry struct {
	Entry
	data []byte
}

// Writer builds a new archive. Entries are buffered by Add and written by
// Close, so nothing appears on disk until then.
type Writer struct {
	dirPath string
	opts    WriterOptions
	logger  *log.Logger
	entries map[string]*pendingEntry
	written []string
	closed  bool
}

// NewWriter prepares an archive whose directory file will be dirPath. Parts,
// if any, are named after it the same way Open resolves them.
func NewWriter(dirPath string, opts WriterOptions) (*Writer, error) {
	if opts.Version == 0 {
		opts.Version = Version2
	}
	if opts.Version != Version1 && opts.Version != Version2 {
		return nil, newError("write", ErrUnsupportedVersion, dirPath, -1, fmt.Errorf("version %d", opts.Version))
	}
	if opts.MaxPartSize < 0 || opts.MaxPartSize > math.MaxUint32 {
		return nil, newError("write", ErrIO, dirPath, -1, fmt.Errorf("max part size %d out of range", opts.MaxPartSize))
	}
	if opts.PreloadSize < 0 || opts.PreloadSize > math.MaxUint16 {
		return nil, newError("write", ErrIO, dirPath, -1, fmt.Errorf("preload size %d out of range", opts.PreloadSize))
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}
	return &Writer{dirPath: dirPath, opts: opts, logger: logger, entries: make(map[string]*pendingEntry)}, nil
}

// Add queues data under the logical path p. The data is copied.
func (w *Writer) Add(p string, data []byte) error {
	if w.closed {
		return newError("write", ErrClosed, w.dirPath, -1, nil)
	}
	norm := strings.ReplaceAll(p, "\\", "/")
	if norm == "" || strings.HasPrefix(norm, "/") || CleanPath(norm) != norm || strings.ContainsRune(norm, 0) {
		return newError("write", ErrUnsafePath, w.dirPath, -1, fmt.Errorf("%q is not a clean relative path", p)).withEntry(p)
	}
	ext, dir, name := splitPath(norm)
	if ext == " " || dir == " " || name == " " || joinPath(ext, dir, name) != norm {
		return newError("write", ErrUnsafePath, w.dirPath, -1, fmt.Errorf("%q cannot be stored in a directory tree", p)).withEntry(p)
	}
	if _, dup := w.entries[norm]; dup {
		return newError("write", ErrDuplicateEntry, w.dirPath, -1, nil).withEntry(norm)
	}
	if int64(len(data)) > math.MaxUint32 {
		return newError("write", ErrIO, w.dirPath, -1, fmt.Errorf("%d bytes does not fit an entry", len(data))).withEntry(norm)
	}
	w.entries[norm] = &pendingEntry{
		Entry: Entry{Path: norm, Ext: ext, Dir: dir, Name: name, CRC: Checksum(data)},
		data:  append([]byte(nil), data...),
	}
	return nil
}

// AddFile queues the contents of the local file src under p.
func (w *Writer) AddFile(p, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return newError("write", ErrIO, w.dirPath, -1, err).withEntry(p)
	}
	return w.Add(p, data)
}

// Len returns the number of queued entries.
func (w *Writer) Len() int { return len(w.entries) }

// Written lists the files produced by Close, parts first.
func (w *Writer) Written() []string { return slices.Clone(w.written) }

type partBuf struct {
	index uint16
	data  bytes.Buffer
}

// Close lays out and writes every part and then the directory file. On error
// the directory file is not written, so no half built archive can be opened.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	entries := make([]*pendingEntry, 0, len(w.entries))
	for _, e := range w.entries {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *pendingEntry) int {
		return cmp.Or(cmp.Compare(a.Ext, b.Ext), cmp.Compare(a.Dir, b.Dir), cmp.Compare(a.Name, b.Name))
	})

	var (
		embedded bytes.Buffer
		parts    []*partBuf
	)
	for _, e := range entries {
		pre := min(w.opts.PreloadSize, len(e.data))
		e.preload = e.data[:pre]
		e.PreloadSize = uint16(pre)
		chunk := e.data[pre:]
		e.Length = uint32(len(chunk))
		if w.opts.MaxPartSize == 0 {
			if int64(embedded.Len())+int64(len(chunk)) > math.MaxUint32 {
				return newError("write", ErrIO, w.dirPath, -1, fmt.Errorf("embedded data exceeds 4 GiB")).withEntry(e.Path)
			}
			e.ArchiveIndex = DirIndex
			e.Offset = uint32(embedded.Len())
			embedded.Write(chunk)
			continue
		}
		if len(parts) == 0 || (parts[len(parts)-1].data.Len() > 0 && int64(parts[len(parts)-1].data.Len()+len(chunk)) > w.opts.MaxPartSize) {
			if len(parts) > int(MaxPartIndex) {
				return newError("write", ErrIO, w.dirPath, -1, fmt.Errorf("more than %d parts", int(MaxPartIndex)+1))
			}
			parts = append(parts, &partBuf{index: uint16(len(parts))})
		}
		cur := parts[len(parts)-1]
		e.ArchiveIndex = cur.index
		e.Offset = uint32(cur.data.Len())
		cur.data.Write(chunk)
	}

	tree := encodeTree(entries)
	if int64(len(tree)) > math.MaxUint32 {
		return newError("write", ErrIO, w.dirPath, -1, fmt.Errorf("directory tree exceeds 4 GiB"))
	}

	var md5s []ChunkMD5
	for _, p := range parts {
		path := PartPath(w.dirPath, p.index)
		if err := writeFileAtomic(path, p.data.Bytes()); err != nil {
			return newError("write", ErrIO, w.dirPath, -1, err).withPart(path)
		}
		w.written = append(w.written, path)
		w.logger.Debug("wrote part", "part", path, "bytes", p.data.Len())
		if w.opts.Version == Version2 {
			md5s = append(md5s, blockMD5s(uint32(p.index), p.data.Bytes())...)
		}
	}

	h := Header{Signature: Signature, Version: w.opts.Version, TreeSize: uint32(len(tree))}
	if h.Version == Version2 {
		h.EmbeddedChunkSize = uint32(embedded.Len())
		h.ArchiveMD5Size = uint32(len(md5s) * archiveMD5EntrySize)
		h.OtherMD5Size = otherMD5SectionSize
	}
	out := binio.NewWriter(int(h.Size()) + len(tree) + embedded.Len() + int(h.ArchiveMD5Size) + int(h.OtherMD5Size))
	encodeHeader(out, h)
	out.PutBytes(tree)
	out.PutBytes(embedded.Bytes())
	if h.Version == Version2 {
		secStart := out.Len()
		for _, m := range md5s {
			encodeChunkMD5(out, m)
		}
		treeSum := md5.Sum(tree)
		secSum := md5.Sum(out.Bytes()[secStart:])
		out.PutBytes(treeSum[:])
		out.PutBytes(secSum[:])
		fileSum := md5.Sum(out.Bytes())
		out.PutBytes(fileSum[:])
	}
	if err := writeFileAtomic(w.dirPath, out.Bytes()); err != nil {
		return newError("write", ErrIO, w.dirPath, -1, err)
	}
	w.written = append(w.written, w.dirPath)
	w.logger.Debug("wrote directory", "archive", w.dirPath, "version", h.Version, "entries", len(entries), "parts", len(parts))
	return nil
}

// encodeTree groups sorted entries by extension and directory.
func encodeTree(entries []*pendingEntry) []byte {
	w := binio.NewWriter(64 * len(entries))
	for i := 0; i < len(entries); {
		ext := entries[i].Ext
		w.PutCString(treeString(ext))
		for i < len(entries) && entries[i].Ext == ext {
			dir := entries[i].Dir
			w.PutCString(treeString(dir))
			for i < len(entries) && entries[i].Ext == ext && entries[i].Dir == dir {
				w.PutCString(treeString(entries[i].Name))
				encodeEntryRecord(w, entries[i].Entry)
				i++
			}
			w.PutU8(0)
		}
		w.PutU8(0)
	}
	w.PutU8(0)
	return w.Bytes()
}

func blockMD5s(index uint32, data []byte) []ChunkMD5 {
	var out []ChunkMD5
	for off := 0; off < len(data); off += md5BlockSize {
		end := min(off+md5BlockSize, len(data))
		out = append(out, ChunkMD5{ArchiveIndex: index, Offset: uint32(off), Length: uint32(end - off), MD5: md5.Sum(data[off:end])})
	}
	return out
}

func writeFileAtomic(path string, data []byte) error {
	f, err := fsutil.CreateAtomic(path, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}
