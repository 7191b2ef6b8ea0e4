package vpk

import (
	"fmt"
	"strings"

	"github.com/javi11/govpk/internal/keyvalues"
	"github.com/javi11/govpk/internal/textutil"
)

// AddonInfoPath is where Source engine addons keep their metadata.
const AddonInfoPath = "addoninfo.txt"

// AddonInfo is the decoded addoninfo.txt of an addon archive.
type AddonInfo struct {
	Title       string            `json:"title,omitempty"`
	Version     string            `json:"version,omitempty"`
	Author      string            `json:"author,omitempty"`
	Description string            `json:"description,omitempty"`
	Encoding    string            `json:"encoding"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// ParseAddonInfo decodes an addoninfo.txt payload of unknown text encoding.
// Keys in Fields are lower-cased; nested blocks are skipped.
func ParseAddonInfo(data []byte) (AddonInfo, error) {
	text, enc := textutil.Decode(data)
	root, err := keyvalues.Parse(text)
	if err != nil {
		return AddonInfo{Encoding: enc}, fmt.Errorf("parse addoninfo: %w", err)
	}
	block := root
	if first := root.Children[0]; first.IsBlock() {
		block = first
	}
	info := AddonInfo{Encoding: enc, Fields: make(map[string]string)}
	for _, n := range block.Children {
		if n.IsBlock() {
			continue
		}
		k := strings.ToLower(n.Key)
		if _, seen := info.Fields[k]; !seen {
			info.Fields[k] = n.Value
		}
	}
	info.Title = info.Fields["addontitle"]
	info.Version = info.Fields["addonversion"]
	info.Author = info.Fields["addonauthor"]
	info.Description = info.Fields["addondescription"]
	return info, nil
}

// AddonInfo reads and parses addoninfo.txt from the archive.
func (a *Archive) AddonInfo() (AddonInfo, error) {
	if _, ok := a.catalog.Lookup(AddonInfoPath); !ok {
		if a.closed.Load() {
			return AddonInfo{}, newError("addoninfo", ErrClosed, a.path, -1, nil)
		}
		return AddonInfo{}, newError("addoninfo", ErrNoAddonInfo, a.path, -1, nil)
	}
	data, err := a.ReadEntry(AddonInfoPath)
	if err != nil {
		return AddonInfo{}, err
	}
	info, err := ParseAddonInfo(data)
	if err != nil {
		return info, newError("addoninfo", ErrNoAddonInfo, a.path, -1, err).withEntry(AddonInfoPath)
	}
	return info, nil
}
