package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
)

func filterFlags(cmd *cobra.Command, f *vpk.Filter) {
	cmd.Flags().StringVar(&f.Ext, "ext", "", "only entries with this extension")
	cmd.Flags().StringVar(&f.Prefix, "prefix", "", "only entries under this directory")
	cmd.Flags().StringVar(&f.Pattern, "match", "", "only entries whose path matches this glob")
}

func newListCommand(a *app) *cobra.Command {
	var (
		filter vpk.Filter
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List archive entries",
		Args:  argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()
			out := cmd.OutOrStdout()
			if asJSON {
				var entries []vpk.Entry
				for e := range arc.Entries(filter) {
					entries = append(entries, e)
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			n, total := 0, int64(0)
			printf(out, "%s\n", TitleStyle.Render(fmt.Sprintf("%-60s %10s %5s %8s", "PATH", "SIZE", "PART", "CRC")))
			for e := range arc.Entries(filter) {
				printf(out, "%-60s %10d %5s %08x\n", e.Path, e.Size(), e.PartName(), e.CRC)
				n++
				total += e.Size()
			}
			printf(out, "%s\n", SubtitleStyle.Render(fmt.Sprintf("%d entries, %s", n, humanSize(total))))
			return nil
		},
	}
	filterFlags(cmd, &filter)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}
