package bundle

import (
	"strconv"
	"strings"
)

var nameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// ArchiveName builds the bundle file name (without extension) from the
// distinct titles of items, falling back to up to three file stems.
func ArchiveName(items []Item) string {
	var titles []string
	seen := make(map[string]bool)
	for _, it := range items {
		if it.Title != "" && !seen[it.Title] {
			seen[it.Title] = true
			titles = append(titles, it.Title)
		}
	}
	var name string
	if len(titles) > 0 {
		name = strings.Join(titles, "-")
	} else {
		stems := make([]string, 0, min(len(items), 3))
		for _, it := range items[:min(len(items), 3)] {
			stems = append(stems, it.File.Stem())
		}
		name = strings.Join(stems, "-")
		if len(items) > 3 {
			name += "-and-" + strconv.Itoa(len(items)-3) + "-more"
		}
	}
	return nameReplacer.Replace(name)
}
