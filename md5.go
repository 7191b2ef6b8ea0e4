package vpk

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/javi11/govpk/internal/binio"
)

// Version 2 directory files end with auxiliary blocks after the embedded chunk
// data:
//
//	archive MD5 section  N * (index u32, offset u32, length u32, md5[16])
//	other MD5 section    md5(tree) md5(archive MD5 section) md5(file so far)
//	signature section    public key and signature, not checked here

// ChunkMD5 is one archive MD5 section entry.
type ChunkMD5 struct {
	ArchiveIndex uint32   `json:"archiveIndex"`
	Offset       uint32   `json:"offset"`
	Length       uint32   `json:"length"`
	MD5          [16]byte `json:"md5"`
}

// ChunkCheck is the result of hashing the range a ChunkMD5 covers.
type ChunkCheck struct {
	ChunkMD5
	Part string `json:"part"`
	OK   bool   `json:"ok"`
	Err  error  `json:"-"`
}

// ArchiveReport summarizes the version 2 whole-archive checks. Available is
// false for version 1 archives and for version 2 archives written without
// MD5 sections.
type ArchiveReport struct {
	Available    bool         `json:"available"`
	TreeOK       bool         `json:"treeOK"`
	ArchiveMD5OK bool         `json:"archiveMD5OK"`
	FileOK       bool         `json:"fileOK"`
	Chunks       []ChunkCheck `json:"chunks,omitempty"`
}

// OK reports whether every available check passed.
func (r ArchiveReport) OK() bool {
	if !r.Available {
		return true
	}
	if !r.TreeOK || !r.ArchiveMD5OK || !r.FileOK {
		return false
	}
	for _, c := range r.Chunks {
		if !c.OK {
			return false
		}
	}
	return true
}

// md5SectionOffset is where the archive MD5 section starts in the _dir file.
func (h Header) md5SectionOffset() int64 { return h.DataOffset() + int64(h.EmbeddedChunkSize) }

func parseChunkMD5s(b []byte) ([]ChunkMD5, error) {
	if len(b)%archiveMD5EntrySize != 0 {
		return nil, fmt.Errorf("archive md5 section size %d is not a multiple of %d", len(b), archiveMD5EntrySize)
	}
	c := binio.NewReader(b)
	out := make([]ChunkMD5, 0, len(b)/archiveMD5EntrySize)
	for c.Len() > 0 {
		var m ChunkMD5
		m.ArchiveIndex, _ = c.U32()
		m.Offset, _ = c.U32()
		m.Length, _ = c.U32()
		sum, _ := c.Bytes(md5.Size)
		copy(m.MD5[:], sum)
		out = append(out, m)
	}
	return out, nil
}

func encodeChunkMD5(w *binio.Writer, m ChunkMD5) {
	w.PutU32(m.ArchiveIndex)
	w.PutU32(m.Offset)
	w.PutU32(m.Length)
	w.PutBytes(m.MD5[:])
}

// VerifyArchive checks the version 2 MD5 sections: each listed chunk range,
// the tree, the archive MD5 section itself and the directory file prefix.
// Mismatches are reported, not returned; the error covers unreadable sections.
func (a *Archive) VerifyArchive(ctx context.Context) (ArchiveReport, error) {
	if a.closed.Load() {
		return ArchiveReport{}, newError("verify", ErrClosed, a.path, -1, nil)
	}
	h := a.header
	if h.Version != Version2 || h.OtherMD5Size < otherMD5SectionSize {
		return ArchiveReport{}, nil
	}
	off := h.md5SectionOffset()
	if end := off + int64(h.ArchiveMD5Size) + otherMD5SectionSize; a.dirSize >= 0 && end > a.dirSize {
		return ArchiveReport{}, newError("verify", ErrMalformedDirectory, a.path, off,
			fmt.Errorf("md5 sections end at %d, file has %d bytes: %w", end, a.dirSize, io.ErrUnexpectedEOF))
	}
	sec := make([]byte, int64(h.ArchiveMD5Size)+otherMD5SectionSize)
	if n, err := a.dir.ReadAt(sec, off); n < len(sec) {
		kind := ErrIO
		if isEOF(err) {
			kind, err = ErrMalformedDirectory, io.ErrUnexpectedEOF
		}
		return ArchiveReport{}, newError("verify", kind, a.path, off+int64(n), err)
	}
	chunks, err := parseChunkMD5s(sec[:h.ArchiveMD5Size])
	if err != nil {
		return ArchiveReport{}, newError("verify", ErrMalformedDirectory, a.path, off, err)
	}
	other := sec[h.ArchiveMD5Size:]

	rep := ArchiveReport{Available: true}
	treeSum, err := a.sumRange(a.dir, h.Size(), int64(h.TreeSize))
	if err != nil {
		return ArchiveReport{}, err
	}
	rep.TreeOK = bytes.Equal(treeSum[:], other[0:16])
	secSum := md5.Sum(sec[:h.ArchiveMD5Size])
	rep.ArchiveMD5OK = bytes.Equal(secSum[:], other[16:32])
	fileSum, err := a.sumRange(a.dir, 0, off+int64(h.ArchiveMD5Size)+32)
	if err != nil {
		return ArchiveReport{}, err
	}
	rep.FileOK = bytes.Equal(fileSum[:], other[32:48])

	for _, m := range chunks {
		if ctx.Err() != nil {
			break
		}
		rep.Chunks = append(rep.Chunks, a.checkChunk(m))
	}
	if !rep.OK() {
		a.logger.Warn("archive md5 mismatch", "archive", a.path, "tree", rep.TreeOK, "section", rep.ArchiveMD5OK, "file", rep.FileOK)
	}
	return rep, ctx.Err()
}

func (a *Archive) checkChunk(m ChunkMD5) ChunkCheck {
	cc := ChunkCheck{ChunkMD5: m}
	if m.ArchiveIndex > uint32(DirIndex) {
		cc.Err = newError("verify", ErrMalformedDirectory, a.path, -1, fmt.Errorf("archive index %d out of range", m.ArchiveIndex))
		return cc
	}
	src, err := a.loc.resolve(Entry{ArchiveIndex: uint16(m.ArchiveIndex), Offset: m.Offset})
	if err != nil {
		cc.Err = err
		return cc
	}
	cc.Part = src.path
	sum, err := a.sumRange(src.r, src.base, int64(m.Length))
	if err != nil {
		if ve, ok := err.(*Error); ok {
			ve.Part = src.path
		}
		cc.Err = err
		return cc
	}
	cc.OK = sum == m.MD5
	return cc
}

func (a *Archive) sumRange(r io.ReaderAt, off, n int64) ([16]byte, error) {
	var sum [16]byte
	h := md5.New()
	copied, err := io.Copy(h, io.NewSectionReader(r, off, n))
	if err != nil {
		return sum, newError("verify", ErrIO, a.path, off+copied, err)
	}
	if copied != n {
		return sum, newError("verify", ErrMalformedDirectory, a.path, off+copied, fmt.Errorf("range ended after %d of %d bytes: %w", copied, n, io.ErrUnexpectedEOF))
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}
