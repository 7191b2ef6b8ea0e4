// Package keyvalues parses Valve's KeyValues text format as used by
// addoninfo.txt:
//
//	"AddonInfo"
//	{
//		addontitle "My Addon"  // comment
//		addonversion 1.0
//	}
package keyvalues

import (
	"errors"
	"fmt"
	"strings"
)

// Node is a key with either a string value or child nodes.
type Node struct {
	Key      string
	Value    string
	Children []*Node
}

// IsBlock reports whether n was written with braces.
func (n *Node) IsBlock() bool { return n.Children != nil }

// Get returns the first child whose key matches (case-insensitive).
func (n *Node) Get(key string) (*Node, bool) {
	for _, c := range n.Children {
		if strings.EqualFold(c.Key, key) {
			return c, true
		}
	}
	return nil, false
}

// String returns the value of the first matching child.
func (n *Node) String(key string) string {
	if c, ok := n.Get(key); ok {
		return c.Value
	}
	return ""
}

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("keyvalues: line %d: %s", e.Line, e.Msg) }

// ErrEmpty is returned when the input holds no key.
var ErrEmpty = errors.New("keyvalues: empty document")

type tokenKind int

const (
	tokString tokenKind = iota
	tokOpen
	tokClose
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	src  string
	pos  int
	line int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.pos++
		case c == '/' && strings.HasPrefix(l.src[l.pos:], "//"):
			if i := strings.IndexByte(l.src[l.pos:], '\n'); i >= 0 {
				l.pos += i
			} else {
				l.pos = len(l.src)
			}
		case c == '[':
			// Platform conditionals like [$WIN32] are ignored.
			i := strings.IndexByte(l.src[l.pos:], ']')
			if i < 0 {
				return token{}, &SyntaxError{Line: l.line, Msg: "unterminated conditional"}
			}
			l.pos += i + 1
		case c == '{':
			l.pos++
			return token{kind: tokOpen, line: l.line}, nil
		case c == '}':
			l.pos++
			return token{kind: tokClose, line: l.line}, nil
		case c == '"':
			return l.quoted()
		default:
			return l.bare(), nil
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) quoted() (token, error) {
	start := l.line
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{kind: tokString, text: b.String(), line: start}, nil
		case '\\':
			if l.pos+1 < len(l.src) {
				switch l.src[l.pos+1] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				case '\\', '"':
					b.WriteByte(l.src[l.pos+1])
				default:
					b.WriteByte('\\')
					b.WriteByte(l.src[l.pos+1])
				}
				l.pos += 2
				continue
			}
		case '\n':
			l.line++
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, &SyntaxError{Line: start, Msg: "unterminated string"}
}

func (l *lexer) bare() token {
	start := l.pos
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\r', '\n', '{', '}', '"':
			return token{kind: tokString, text: l.src[start:l.pos], line: l.line}
		}
		l.pos++
	}
	return token{kind: tokString, text: l.src[start:], line: l.line}
}

// Parse parses src and returns a root node whose children are the top-level
// keys.
func Parse(src string) (*Node, error) {
	l := &lexer{src: strings.TrimPrefix(src, "\uFEFF"), line: 1}
	root := &Node{}
	children, err := parseList(l, false)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, ErrEmpty
	}
	root.Children = children
	return root, nil
}

func parseList(l *lexer, nested bool) ([]*Node, error) {
	out := []*Node{}
	for {
		key, err := l.next()
		if err != nil {
			return nil, err
		}
		switch key.kind {
		case tokEOF:
			if nested {
				return nil, &SyntaxError{Line: key.line, Msg: "missing }"}
			}
			return out, nil
		case tokClose:
			if !nested {
				return nil, &SyntaxError{Line: key.line, Msg: "unexpected }"}
			}
			return out, nil
		case tokOpen:
			return nil, &SyntaxError{Line: key.line, Msg: "block without key"}
		}
		val, err := l.next()
		if err != nil {
			return nil, err
		}
		n := &Node{Key: key.text}
		switch val.kind {
		case tokString:
			n.Value = val.text
		case tokOpen:
			if n.Children, err = parseList(l, true); err != nil {
				return nil, err
			}
		default:
			return nil, &SyntaxError{Line: val.line, Msg: fmt.Sprintf("key %q has no value", key.text)}
		}
		out = append(out, n)
	}
}
