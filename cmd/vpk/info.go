package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
)

func newInfoCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "Show header, part and addon information",
		Args:  argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()
			out := cmd.OutOrStdout()
			row := func(k string, v any) { printf(out, "%s %v\n", labelStyle.Render(k), v) }

			h := arc.Header()
			cat := arc.Catalog()
			printf(out, "%s\n", TitleStyle.Render(arc.Path()))
			row("version", h.Version)
			row("tree size", humanSize(int64(h.TreeSize)))
			if h.Version == vpk.Version2 {
				row("embedded", humanSize(int64(h.EmbeddedChunkSize)))
				row("md5 sections", fmt.Sprintf("%d + %d bytes", h.ArchiveMD5Size, h.OtherMD5Size))
				row("signature", fmt.Sprintf("%d bytes", h.SignatureSize))
			}
			row("entries", cat.Len())
			row("total size", humanSize(cat.TotalSize()))
			exts := cat.Extensions()
			slices.Sort(exts)
			row("extensions", exts)

			parts, err := vpk.DiscoverParts(arc.Path())
			if err != nil {
				return classify(err)
			}
			row("parts", len(parts))

			info, err := arc.AddonInfo()
			switch {
			case errors.Is(err, vpk.ErrNoAddonInfo):
				row("addon", SubtitleStyle.Render("no addoninfo.txt"))
			case err != nil:
				return classify(err)
			default:
				row("title", info.Title)
				if info.Version != "" {
					row("addon version", info.Version)
				}
				if info.Author != "" {
					row("author", info.Author)
				}
				row("encoding", info.Encoding)
			}
			return nil
		},
	}
}
