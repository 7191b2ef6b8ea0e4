package vpk

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Every error returned by this package is an *Error whose
// Kind is one of these, so callers can branch with errors.Is.
var (
	// ErrOpen is matched by ErrBadSignature, ErrUnsupportedVersion and ErrTruncatedHeader.
	ErrOpen               = errors.New("open archive")
	ErrBadSignature       = errors.New("bad signature")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncatedHeader    = errors.New("truncated header")
	ErrMalformedDirectory = errors.New("malformed directory")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrMissingArchivePart = errors.New("missing archive part")
	ErrTruncatedPayload   = errors.New("truncated payload")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrIO                 = errors.New("i/o error")
	ErrNotFound           = errors.New("entry not found")
	ErrUnsafePath         = errors.New("unsafe path")
	ErrClosed             = errors.New("archive closed")
	ErrNoAddonInfo        = errors.New("no addoninfo.txt")
)

// Error carries the context needed to render a precise message: which
// archive, entry and part were involved and where in the file it happened.
type Error struct {
	Op      string // operation, e.g. "open", "parse", "extract"
	Kind    error  // one of the Err* sentinels
	Archive string // directory file path
	Entry   string // logical entry path, if any
	Part    string // part file path, if any
	Offset  int64  // byte offset, -1 when not relevant
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("vpk: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString(e.Archive)
	if e.Entry != "" {
		fmt.Fprintf(&b, ": %s", e.Entry)
	}
	if e.Part != "" {
		fmt.Fprintf(&b, " (part %s)", e.Part)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if target == e.Kind {
		return true
	}
	if target == ErrOpen {
		switch e.Kind {
		case ErrBadSignature, ErrUnsupportedVersion, ErrTruncatedHeader:
			return true
		}
	}
	return false
}

func newError(op string, kind error, archive string, offset int64, cause error) *Error {
	return &Error{Op: op, Kind: kind, Archive: archive, Offset: offset, Err: cause}
}

func (e *Error) withEntry(path string) *Error {
	e.Entry = path
	return e
}

func (e *Error) withPart(path string) *Error {
	e.Part = path
	return e
}
