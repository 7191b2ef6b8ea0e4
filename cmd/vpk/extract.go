package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
)

func newExtractCommand(a *app) *cobra.Command {
	var (
		filter vpk.Filter
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "extract <archive> [paths...]",
		Short: "Extract entries into a directory",
		Long: `Extract entries into a directory, keeping their archive paths.

Without paths every entry matching the filter flags is extracted. Entries
fail independently; the command reports each failure and exits non-zero if
any entry failed. Interrupting stops after the entries already in progress.`,
		Args: argsUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			opts := a.extractOptions()
			opts.Progress = func(p vpk.Progress) {
				if p.Err != nil {
					a.logger.Error("extract failed", "entry", p.Path, "err", p.Err)
					return
				}
				a.logger.Debug("extracted", "entry", p.Path, "done", p.Done, "total", p.Total)
			}
			var res vpk.BatchResult
			if len(args) > 1 {
				res, err = arc.ExtractBatch(cmd.Context(), args[1:], outDir, opts)
			} else {
				res, err = arc.ExtractAll(cmd.Context(), filter, outDir, opts)
			}
			if err != nil {
				return classify(err)
			}
			return reportBatch(cmd, res, outDir)
		},
	}
	filterFlags(cmd, &filter)
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "destination directory")
	return cmd
}

func reportBatch(cmd *cobra.Command, res vpk.BatchResult, outDir string) error {
	out := cmd.OutOrStdout()
	var (
		bytes      int64
		mismatched int
		errs       []error
	)
	for _, r := range res.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		bytes += r.Bytes
		if !r.Checksum.OK {
			mismatched++
			printf(out, "%s %s\n", WarningStyle.Render("crc mismatch"), r.Path)
		}
	}
	ok := len(res.Results) - len(errs)
	printf(out, "%s %d of %d entries (%s) to %s\n",
		SuccessStyle.Render("extracted"), ok, res.Total, humanSize(bytes), PathStyle.Render(outDir))
	if mismatched > 0 {
		printf(out, "%s\n", WarningStyle.Render(fmt.Sprintf("%d entries failed their checksum", mismatched)))
	}
	if res.Canceled {
		printf(out, "%s\n", WarningStyle.Render(fmt.Sprintf("canceled, %d entries not attempted", res.Total-len(res.Results))))
	}
	if len(errs) > 0 {
		return classify(fmt.Errorf("%d entries failed: %w", len(errs), errors.Join(errs...)))
	}
	if res.Canceled {
		return &ExitError{Code: exitFailure, Err: errors.New("interrupted")}
	}
	return nil
}
