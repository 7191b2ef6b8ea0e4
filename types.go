package vpk

import (
	"fmt"
	"path"
	"strings"
)

// Header is the fixed prefix of a directory file.
type Header struct {
	Signature uint32
	Version   uint32
	TreeSize  uint32

	// Version 2 only.
	EmbeddedChunkSize uint32
	ArchiveMD5Size    uint32
	OtherMD5Size      uint32
	SignatureSize     uint32
}

// Size returns the encoded header length.
func (h Header) Size() int64 { return int64(headerSize(h.Version)) }

// DataOffset is where chunk data for DirIndex entries starts in the _dir file.
func (h Header) DataOffset() int64 { return h.Size() + int64(h.TreeSize) }

// Entry describes one logical file. Values are copies; the catalog they came
// from is never modified through them. RecordOffset is the absolute position of
// the entry record in the _dir file.
type Entry struct {
	Path         string `json:"path"`
	Ext          string `json:"ext"`
	Dir          string `json:"dir"`
	Name         string `json:"name"`
	CRC          uint32 `json:"crc"`
	PreloadSize  uint16 `json:"preloadSize"`
	ArchiveIndex uint16 `json:"archiveIndex"`
	Offset       uint32 `json:"offset"`
	Length       uint32 `json:"length"`
	RecordOffset int64  `json:"recordOffset"`

	preload []byte
}

// Size is the total payload length (preload + chunk).
func (e Entry) Size() int64 { return int64(e.PreloadSize) + int64(e.Length) }

// InDir reports whether the chunk lives in the directory file itself.
func (e Entry) InDir() bool { return e.ArchiveIndex == DirIndex }

// Preload returns a copy of the inline preload bytes.
func (e Entry) Preload() []byte {
	if len(e.preload) == 0 {
		return nil
	}
	return append([]byte(nil), e.preload...)
}

// PartName formats the archive index the way part files are numbered.
func (e Entry) PartName() string {
	if e.InDir() {
		return "dir"
	}
	return fmt.Sprintf("%03d", e.ArchiveIndex)
}

// joinPath builds the logical path of an entry from its tree components.
func joinPath(ext, dir, name string) string {
	p := name
	if ext != "" {
		p += "." + ext
	}
	if dir != "" {
		p = dir + "/" + p
	}
	return p
}

// splitPath is the inverse of joinPath. The extension is everything after the
// last dot of the base name.
func splitPath(p string) (ext, dir, name string) {
	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[i+1:], dir, base[:i]
	}
	return "", dir, base
}

// CleanPath normalizes a caller supplied logical path: backslashes become
// slashes and leading "./" or "/" are dropped.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// normalizeTreeString maps the " " sentinel used for empty components to "".
func normalizeTreeString(s string) string {
	if s == " " {
		return ""
	}
	return s
}

// treeString is the inverse of normalizeTreeString.
func treeString(s string) string {
	if s == "" {
		return " "
	}
	return s
}
