// Package bundle exports selected addons, with their parts and thumbnails,
// into a single compressed tar file, and deletes addons from a library.
package bundle

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	vpk "github.com/javi11/govpk"
	"github.com/javi11/govpk/internal/fsutil"
)

// Compression selects the stream codec around the tar.
type Compression uint8

const (
	Zstd Compression = iota
	LZ4
	None
)

func (c Compression) String() string {
	switch c {
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	case None:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// Ext is the file extension used for bundles of this compression.
func (c Compression) Ext() string {
	switch c {
	case Zstd:
		return ".tar.zst"
	case LZ4:
		return ".tar.lz4"
	default:
		return ".tar"
	}
}

// ParseCompression maps a config or flag value to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	case "none", "tar":
		return None, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Item is one addon selected for export or deletion.
type Item struct {
	File  vpk.AddonFile
	Title string
}

// Options configures Export.
type Options struct {
	Compression Compression
	// Level is the codec level: zstd 1-22 (default 3), lz4 0-9 (0 is fast).
	Level  int
	Logger *log.Logger
}

// Result describes a written bundle.
type Result struct {
	Path    string
	Size    int64
	Elapsed time.Duration
	Files   []string
}

// ErrNothingSelected is returned by Export and Delete for an empty selection.
var ErrNothingSelected = errors.New("no files selected")

// Export writes items into <outDir>/<name><ext>. The bundle is only visible
// once complete.
func Export(ctx context.Context, items []Item, outDir string, opts Options) (Result, error) {
	start := time.Now()
	if len(items) == 0 {
		return Result{}, ErrNothingSelected
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	files := collectFiles(items)
	target := filepath.Join(outDir, ArchiveName(items)+opts.Compression.Ext())
	logger.Info("creating bundle", "path", target, "files", len(files), "compression", opts.Compression)

	out, err := fsutil.CreateAtomic(target, 0o644)
	if err != nil {
		return Result{}, err
	}
	var members []string
	err = func() error {
		cw, err := compressor(out, opts)
		if err != nil {
			return err
		}
		tw := tar.NewWriter(cw)
		for _, p := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			name, err := addFile(tw, p)
			if err != nil {
				return err
			}
			if name != "" {
				members = append(members, name)
				logger.Debug("added", "file", name)
			}
		}
		if err := tw.Close(); err != nil {
			return fmt.Errorf("close tar: %w", err)
		}
		return cw.Close()
	}()
	if err != nil {
		out.Abort()
		return Result{}, err
	}
	if err := out.Commit(); err != nil {
		return Result{}, err
	}
	st, err := os.Stat(target)
	if err != nil {
		return Result{}, err
	}
	res := Result{Path: target, Size: st.Size(), Elapsed: time.Since(start), Files: members}
	logger.Info("bundle created", "path", target, "size", st.Size(), "took", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// collectFiles lists every file belonging to items, sorted and de-duplicated
// by base name the way they are stored in the tar.
func collectFiles(items []Item) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" || seen[filepath.Base(p)] {
			return
		}
		seen[filepath.Base(p)] = true
		out = append(out, p)
	}
	for _, it := range items {
		add(it.File.Path)
		for _, p := range it.File.Parts {
			add(p)
		}
		add(it.File.Thumbnail)
	}
	slices.SortFunc(out, func(a, b string) int { return strings.Compare(filepath.Base(a), filepath.Base(b)) })
	return out
}

// addFile copies p into tw under its base name. A file that vanished since the
// scan is skipped and reported with an empty name.
func addFile(tw *tar.Writer, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	hdr, err := tar.FileInfoHeader(st, "")
	if err != nil {
		return "", fmt.Errorf("%s: %w", p, err)
	}
	hdr.Name = filepath.Base(p)
	if err := tw.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("%s: %w", p, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return "", fmt.Errorf("%s: %w", p, err)
	}
	return hdr.Name, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4,
	lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func compressor(w io.Writer, opts Options) (io.WriteCloser, error) {
	threads := max(1, runtime.NumCPU()-1)
	switch opts.Compression {
	case Zstd:
		level := opts.Level
		if level == 0 {
			level = 3
		}
		return zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(threads),
			zstd.WithEncoderCRC(true),
		)
	case LZ4:
		if opts.Level < 0 || opts.Level >= len(lz4Levels) {
			return nil, fmt.Errorf("lz4 level %d out of range", opts.Level)
		}
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lz4Levels[opts.Level]), lz4.ConcurrencyOption(threads), lz4.ChecksumOption(true)); err != nil {
			return nil, err
		}
		return zw, nil
	case None:
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression %v", opts.Compression)
	}
}

// Member is one file stored in a bundle.
type Member struct {
	Name string
	Size int64
}

// List reads the members of a bundle written by Export. The codec is chosen
// from the file extension.
func List(path string) ([]Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader
	switch lower := strings.ToLower(path); {
	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(lower, ".lz4"):
		r = lz4.NewReader(f)
	default:
		r = f
	}
	tr := tar.NewReader(r)
	var out []Member
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// Drain so the codec checksum is verified.
		n, err := io.Copy(io.Discard, tr)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, hdr.Name, err)
		}
		out = append(out, Member{Name: hdr.Name, Size: n})
	}
}

// Delete removes each item's archive, numbered parts and thumbnail. It returns
// how many archives were deleted; failures do not stop the remaining items.
func Delete(items []Item, logger *log.Logger) (int, error) {
	if len(items) == 0 {
		return 0, ErrNothingSelected
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var (
		deleted int
		errs    []error
	)
	remove := func(p string) bool {
		if p == "" {
			return false
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			logger.Debug("deleted", "path", p)
			return true
		case errors.Is(err, fs.ErrNotExist):
			return false
		default:
			errs = append(errs, err)
			return false
		}
	}
	for _, it := range items {
		if remove(it.File.Path) {
			deleted++
		}
		for _, p := range it.File.Parts {
			remove(p)
		}
		remove(it.File.Thumbnail)
	}
	return deleted, errors.Join(errs...)
}
