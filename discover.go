package vpk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Part naming: pak01_dir.vpk holds the directory, pak01_000.vpk .. pak01_NNN.vpk
// hold chunk data. A directory file without the _dir suffix (addon.vpk) uses
// addon_NNN.vpk for any numbered parts it references.
var partRe = regexp.MustCompile(`(?i)^(?P<prefix>.*)_(?P<num>\d{3,})\.vpk$`)

const dirSuffix = "_dir.vpk"

// partBase returns the path prefix shared by all parts of the archive whose
// directory file is dirPath.
func partBase(dirPath string) string {
	lower := strings.ToLower(dirPath)
	switch {
	case strings.HasSuffix(lower, dirSuffix):
		return dirPath[:len(dirPath)-len(dirSuffix)]
	case strings.HasSuffix(lower, ".vpk"):
		return dirPath[:len(dirPath)-len(".vpk")]
	default:
		return dirPath
	}
}

// PartPath returns the file holding chunk data for archive index idx.
// DirIndex maps to dirPath itself.
func PartPath(dirPath string, idx uint16) string {
	if idx == DirIndex {
		return dirPath
	}
	return fmt.Sprintf("%s_%03d.vpk", partBase(dirPath), idx)
}

// IsPartFile reports whether name looks like a numbered chunk part.
func IsPartFile(name string) bool {
	m := partRe.FindStringSubmatch(filepath.Base(name))
	return m != nil
}

// PartIndex extracts the archive index from a numbered part file name.
func PartIndex(name string) (uint16, bool) {
	m := partRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[2], 10, 16)
	if err != nil || n > uint64(MaxPartIndex) {
		return 0, false
	}
	return uint16(n), true
}

// DiscoverParts lists the numbered part files that exist next to dirPath,
// collecting sequential indexes from 000 until the first gap.
func DiscoverParts(dirPath string) ([]string, error) {
	return DiscoverPartsFS(defaultFS, dirPath)
}

// DiscoverPartsFS works like DiscoverParts but uses provided FileSystem (useful for virtual / in-memory tests).
func DiscoverPartsFS(fsys FileSystem, dirPath string) ([]string, error) {
	if _, err := fsys.Stat(dirPath); err != nil {
		return nil, err
	}
	var parts []string
	for i := uint16(0); i <= MaxPartIndex; i++ {
		p := PartPath(dirPath, i)
		if _, err := fsys.Stat(p); err != nil {
			break
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// AddonFile describes one archive found by ScanDir.
type AddonFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"modTime"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Parts     []string  `json:"parts,omitempty"`
}

// Stem is the file name without the .vpk extension and _dir suffix.
func (a AddonFile) Stem() string { return filepath.Base(partBase(a.Path)) }

// ScanDir lists the archives in dir: every *.vpk that is not a numbered
// part. A missing directory yields an empty list.
func ScanDir(dir string) ([]AddonFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if !de.IsDir() {
			names = append(names, de.Name())
		}
	}
	return scanNames(defaultFS, dir, names)
}

// ScanDirFS works like ScanDir over an explicit list of file names from dir.
func ScanDirFS(fsys FileSystem, dir string, names []string) ([]AddonFile, error) {
	return scanNames(fsys, dir, names)
}

func scanNames(fsys FileSystem, dir string, names []string) ([]AddonFile, error) {
	dirFiles := make(map[string]bool)
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), dirSuffix) {
			dirFiles[strings.ToLower(name)] = true
		}
	}
	var out []AddonFile
	for _, name := range names {
		if !strings.EqualFold(filepath.Ext(name), ".vpk") {
			continue
		}
		// addon_2024.vpk is a standalone addon unless addon_dir.vpk sits next to it.
		if m := partRe.FindStringSubmatch(name); m != nil && dirFiles[strings.ToLower(m[1])+dirSuffix] {
			continue
		}
		p := filepath.Join(dir, name)
		st, err := fsys.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		af := AddonFile{Name: name, Path: p, Size: st.Size(), ModTime: st.ModTime()}
		thumb := partBase(p) + ".jpg"
		if _, err := fsys.Stat(thumb); err == nil {
			af.Thumbnail = thumb
		}
		if strings.HasSuffix(strings.ToLower(name), dirSuffix) {
			if af.Parts, err = DiscoverPartsFS(fsys, p); err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
		out = append(out, af)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
