package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
	"github.com/javi11/govpk/internal/bundle"
	"github.com/javi11/govpk/internal/metacache"
)

// addonTitle opens an archive and returns its addoninfo title.
func (a *app) addonTitle(path string) (string, error) {
	arc, err := vpk.Open(path, vpk.WithLogger(a.logger))
	if err != nil {
		return "", err
	}
	defer arc.Close()
	info, err := arc.AddonInfo()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (a *app) cache() (*metacache.Cache, error) {
	return metacache.New(a.cfg.CacheDir, a.logger)
}

// items resolves archive paths to library items with titles from the cache.
func (a *app) items(paths []string) ([]bundle.Item, error) {
	cache, err := a.cache()
	if err != nil {
		return nil, err
	}
	var out []bundle.Item
	for _, p := range paths {
		af, err := lookupAddon(p)
		if err != nil {
			return nil, err
		}
		rec, err := cache.GetOrLoad(af.Path, a.addonTitle)
		if err != nil {
			a.logger.Warn("metadata cache", "path", af.Path, "err", err)
		}
		out = append(out, bundle.Item{File: af, Title: rec.Title})
	}
	return out, nil
}

// lookupAddon scans the archive's directory so its parts and thumbnail are
// picked up the same way scan reports them.
func lookupAddon(p string) (vpk.AddonFile, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return vpk.AddonFile{}, err
	}
	files, err := vpk.ScanDir(filepath.Dir(abs))
	if err != nil {
		return vpk.AddonFile{}, err
	}
	for _, af := range files {
		if af.Path == abs {
			return af, nil
		}
	}
	return vpk.AddonFile{}, fmt.Errorf("%s: %w", p, errNotAddon)
}

var errNotAddon = errors.New("not an addon archive")

type scanRow struct {
	vpk.AddonFile
	Title string `json:"title,omitempty"`
}

func newScanCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "List the addons in a folder with their titles",
		Args:  argsUsage(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.AddonsDir
			if len(args) == 1 {
				dir = args[0]
			}
			files, err := vpk.ScanDir(dir)
			if err != nil {
				return classify(err)
			}
			cache, err := a.cache()
			if err != nil {
				return classify(err)
			}
			rows := make([]scanRow, 0, len(files))
			for _, af := range files {
				rec, err := cache.GetOrLoad(af.Path, a.addonTitle)
				if err != nil {
					a.logger.Warn("metadata cache", "path", af.Path, "err", err)
				}
				rows = append(rows, scanRow{AddonFile: af, Title: rec.Title})
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			printf(out, "%s\n", TitleStyle.Render(fmt.Sprintf("%-40s %-40s %10s %5s", "FILE", "TITLE", "SIZE", "PARTS")))
			for _, r := range rows {
				title := r.Title
				if title == "" {
					title = SubtitleStyle.Render("-")
				}
				printf(out, "%-40s %-40s %10s %5d\n", r.Name, title, humanSize(r.Size), len(r.Parts))
			}
			printf(out, "%s\n", SubtitleStyle.Render(fmt.Sprintf("%d addons in %s", len(rows), dir)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print addons as JSON")
	return cmd
}
