// Package metacache stores per-archive metadata (currently the addon title)
// so scanning a large addon folder does not reopen every archive.
//
// Records are CBOR files named after the archive stem. Each record carries a
// BLAKE3 fingerprint of the archive's size and leading bytes; a record whose
// fingerprint no longer matches the file is treated as absent.
package metacache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/javi11/govpk/internal/fsutil"
)

// fingerprintSpan is how many leading bytes of an archive are hashed.
const fingerprintSpan = 64 << 10

// domainKey separates these fingerprints from any other BLAKE3 use.
var domainKey = [32]byte{
	'g', 'o', 'v', 'p', 'k', '.', 'm', 'e', 't', 'a', 'c', 'a', 'c', 'h', 'e', 0,
}

// Record is the cached metadata of one archive.
type Record struct {
	Title       string   `cbor:"1,keyasint,omitempty"`
	Size        int64    `cbor:"2,keyasint"`
	ModTime     int64    `cbor:"3,keyasint"`
	Fingerprint [32]byte `cbor:"4,keyasint"`
}

// Cache is a directory of records.
type Cache struct {
	dir    string
	logger *log.Logger
	enc    cbor.EncMode
}

// New opens (and creates) the cache directory.
func New(dir string, logger *log.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	return &Cache{dir: dir, logger: logger, enc: enc}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// RecordPath returns the record file for the archive at vpkPath.
func (c *Cache) RecordPath(vpkPath string) string {
	stem := strings.TrimSuffix(filepath.Base(vpkPath), filepath.Ext(vpkPath))
	return filepath.Join(c.dir, stem+".cbor")
}

// Fingerprint hashes the size and first 64 KiB of the file at path.
func Fingerprint(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Record{}, err
	}
	h, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		return Record{}, err
	}
	fmt.Fprintf(h, "%d\n", st.Size())
	if _, err := io.CopyN(h, f, fingerprintSpan); err != nil && !errors.Is(err, io.EOF) {
		return Record{}, fmt.Errorf("hash %s: %w", path, err)
	}
	rec := Record{Size: st.Size(), ModTime: st.ModTime().UnixNano()}
	copy(rec.Fingerprint[:], h.Sum(nil))
	return rec, nil
}

// Get returns the cached record for vpkPath if it is still current.
func (c *Cache) Get(vpkPath string) (Record, bool, error) {
	cur, err := Fingerprint(vpkPath)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := c.read(vpkPath)
	if !ok || rec.Fingerprint != cur.Fingerprint {
		return cur, false, nil
	}
	return rec, true, nil
}

func (c *Cache) read(vpkPath string) (Record, bool) {
	data, err := os.ReadFile(c.RecordPath(vpkPath))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("read cache record", "path", vpkPath, "err", err)
		}
		return Record{}, false
	}
	var rec Record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("corrupt cache record", "record", c.RecordPath(vpkPath), "err", err)
		return Record{}, false
	}
	return rec, true
}

// Put stores rec for vpkPath.
func (c *Cache) Put(vpkPath string, rec Record) error {
	data, err := c.enc.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	f, err := fsutil.CreateAtomic(c.RecordPath(vpkPath), 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

// Remove deletes the record for vpkPath, if any.
func (c *Cache) Remove(vpkPath string) error {
	err := os.Remove(c.RecordPath(vpkPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// TitleFunc loads the title of an archive, typically from its addoninfo.txt.
type TitleFunc func(vpkPath string) (string, error)

// GetOrLoad returns the cached record or calls load and caches its result. A
// failing load is logged and cached as an empty title so the archive is not
// reopened on the next scan.
func (c *Cache) GetOrLoad(vpkPath string, load TitleFunc) (Record, error) {
	rec, ok, err := c.Get(vpkPath)
	if err != nil {
		return Record{}, err
	}
	if ok {
		c.logger.Debug("cache hit", "path", vpkPath)
		return rec, nil
	}
	start := time.Now()
	title, err := load(vpkPath)
	if err != nil {
		c.logger.Warn("load metadata", "path", vpkPath, "err", err)
		title = ""
	}
	rec.Title = title
	if err := c.Put(vpkPath, rec); err != nil {
		return rec, fmt.Errorf("store record: %w", err)
	}
	c.logger.Debug("cache miss", "path", vpkPath, "title", title, "took", time.Since(start))
	return rec, nil
}
