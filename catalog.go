package vpk

import (
	"iter"
	"path"
	"strings"
)

// Catalog is the immutable, ordered set of entries parsed from one directory
// tree. It is safe for concurrent use.
type Catalog struct {
	entries []Entry
	byPath  map[string]int
	size    int64
}

func newCatalog() *Catalog {
	return &Catalog{byPath: make(map[string]int)}
}

// add appends e unless its path is already present.
func (c *Catalog) add(e Entry) bool {
	if _, dup := c.byPath[e.Path]; dup {
		return false
	}
	c.byPath[e.Path] = len(c.entries)
	c.entries = append(c.entries, e)
	c.size += e.Size()
	return true
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// TotalSize returns the sum of all entry sizes.
func (c *Catalog) TotalSize() int64 { return c.size }

// Lookup returns the entry stored under the logical path p.
func (c *Catalog) Lookup(p string) (Entry, bool) {
	i, ok := c.byPath[CleanPath(p)]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries yields entries matching f in tree order. The sequence can be
// iterated any number of times.
func (c *Catalog) Entries(f Filter) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range c.entries {
			if f.Matches(e) && !yield(e) {
				return
			}
		}
	}
}

// Paths returns the logical paths of entries matching f.
func (c *Catalog) Paths(f Filter) []string {
	var out []string
	for e := range c.Entries(f) {
		out = append(out, e.Path)
	}
	return out
}

// Extensions returns the distinct extensions in tree order.
func (c *Catalog) Extensions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range c.entries {
		if _, ok := seen[e.Ext]; ok {
			continue
		}
		seen[e.Ext] = struct{}{}
		out = append(out, e.Ext)
	}
	return out
}

// Filter selects a subset of a catalog. The zero Filter matches everything;
// set fields are combined with AND.
type Filter struct {
	Ext     string           // exact extension, without dot, case-insensitive
	Prefix  string           // logical path prefix
	Pattern string           // path.Match pattern against the logical path
	Match   func(Entry) bool // arbitrary predicate
}

// Matches reports whether e passes every configured criterion.
func (f Filter) Matches(e Entry) bool {
	if f.Ext != "" && !strings.EqualFold(strings.TrimPrefix(f.Ext, "."), e.Ext) {
		return false
	}
	if f.Prefix != "" && !strings.HasPrefix(e.Path, CleanPath(f.Prefix)) {
		return false
	}
	if f.Pattern != "" {
		if ok, err := path.Match(f.Pattern, e.Path); err != nil || !ok {
			return false
		}
	}
	if f.Match != nil && !f.Match(e) {
		return false
	}
	return true
}
