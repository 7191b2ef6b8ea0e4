package vpk

import (
	"io"

	"github.com/javi11/govpk/internal/binio"
)

// readHeader decodes the fixed header from the start of r.
func readHeader(r io.ReaderAt, archive string) (Header, error) {
	var raw [headerSizeV2]byte
	n, err := r.ReadAt(raw[:headerSizeV1], 0)
	if n < headerSizeV1 {
		if isEOF(err) {
			return Header{}, newError("open", ErrTruncatedHeader, archive, int64(n), err)
		}
		return Header{}, newError("open", ErrIO, archive, 0, err)
	}
	c := binio.NewReader(raw[:headerSizeV1])
	var h Header
	h.Signature, _ = c.U32()
	h.Version, _ = c.U32()
	h.TreeSize, _ = c.U32()
	if h.Signature != Signature {
		return Header{}, newError("open", ErrBadSignature, archive, 0, nil)
	}
	switch h.Version {
	case Version1:
		return h, nil
	case Version2:
	default:
		return Header{}, newError("open", ErrUnsupportedVersion, archive, 4, nil)
	}
	n, err = r.ReadAt(raw[headerSizeV1:], headerSizeV1)
	if n < headerSizeV2-headerSizeV1 {
		if isEOF(err) {
			return Header{}, newError("open", ErrTruncatedHeader, archive, int64(headerSizeV1+n), err)
		}
		return Header{}, newError("open", ErrIO, archive, headerSizeV1, err)
	}
	c = binio.NewReader(raw[headerSizeV1:])
	h.EmbeddedChunkSize, _ = c.U32()
	h.ArchiveMD5Size, _ = c.U32()
	h.OtherMD5Size, _ = c.U32()
	h.SignatureSize, _ = c.U32()
	return h, nil
}

// encodeHeader writes h to w using the layout of h.Version.
func encodeHeader(w *binio.Writer, h Header) {
	w.PutU32(h.Signature)
	w.PutU32(h.Version)
	w.PutU32(h.TreeSize)
	if h.Version == Version2 {
		w.PutU32(h.EmbeddedChunkSize)
		w.PutU32(h.ArchiveMD5Size)
		w.PutU32(h.OtherMD5Size)
		w.PutU32(h.SignatureSize)
	}
}
