// Package textutil decodes text files of unknown encoding found inside addons.
package textutil

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names returned by Decode.
const (
	UTF8    = "utf-8"
	UTF16LE = "utf-16le"
	UTF16BE = "utf-16be"
	GBK     = "gbk"
	Latin1  = "latin-1"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode converts b to a string, trying in order: a byte order mark, valid
// UTF-8, GBK, then Latin-1 (which always succeeds). It returns the encoding
// that was used.
func Decode(b []byte) (string, string) {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		return string(b[len(bomUTF8):]), UTF8
	case bytes.HasPrefix(b, bomUTF16LE):
		if s, ok := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), b); ok {
			return s, UTF16LE
		}
	case bytes.HasPrefix(b, bomUTF16BE):
		if s, ok := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), b); ok {
			return s, UTF16BE
		}
	}
	if utf8.Valid(b) {
		return string(b), UTF8
	}
	if s, ok := decodeWith(simplifiedchinese.GBK, b); ok {
		return s, GBK
	}
	s, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(s), Latin1
}

// decodeWith rejects output containing replacement characters, which x/text
// decoders emit instead of failing on invalid input.
func decodeWith(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	s := string(out)
	if strings.ContainsRune(s, utf8.RuneError) {
		return "", false
	}
	return s, true
}
