package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
)

func newVerifyCommand(a *app) *cobra.Command {
	var (
		filter  vpk.Filter
		withMD5 bool
	)
	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check entry CRCs (and version 2 MD5 sections)",
		Args:  argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()
			out := cmd.OutOrStdout()

			rep, err := arc.VerifyAll(cmd.Context(), filter, a.cfg.Workers)
			if err != nil {
				return classify(err)
			}
			for _, r := range rep.Results {
				if err, failed := rep.Errors[r.Path]; failed {
					printf(out, "%s %s: %v\n", ErrorStyle.Render("FAIL"), r.Path, err)
				} else if !r.OK {
					printf(out, "%s %s: crc %08x, stored %08x\n", ErrorStyle.Render("BAD "), r.Path, r.Actual, r.Expected)
				}
			}
			failed := rep.Failed()
			printf(out, "%d entries checked, %d failed\n", len(rep.Results), failed)

			md5Failed := false
			if withMD5 {
				ar, err := arc.VerifyArchive(cmd.Context())
				if err != nil {
					return classify(err)
				}
				md5Failed = reportArchive(cmd, ar)
			}
			switch {
			case failed > 0 || md5Failed:
				return &ExitError{Code: exitIntegrity, Err: errors.New("integrity check failed")}
			case rep.Canceled:
				return &ExitError{Code: exitFailure, Err: errors.New("interrupted")}
			}
			printf(out, "%s\n", SuccessStyle.Render("OK"))
			return nil
		},
	}
	filterFlags(cmd, &filter)
	cmd.Flags().BoolVar(&withMD5, "md5", false, "also check the archive MD5 sections (version 2)")
	return cmd
}

func reportArchive(cmd *cobra.Command, ar vpk.ArchiveReport) bool {
	out := cmd.OutOrStdout()
	if !ar.Available {
		printf(out, "%s\n", SubtitleStyle.Render("no MD5 sections in this archive"))
		return false
	}
	mark := func(ok bool) string {
		if ok {
			return SuccessStyle.Render("ok")
		}
		return ErrorStyle.Render("mismatch")
	}
	printf(out, "tree md5 %s, section md5 %s, file md5 %s\n", mark(ar.TreeOK), mark(ar.ArchiveMD5OK), mark(ar.FileOK))
	bad := 0
	for _, c := range ar.Chunks {
		if c.OK {
			continue
		}
		bad++
		msg := "md5 mismatch"
		if c.Err != nil {
			msg = c.Err.Error()
		}
		printf(out, "%s %s [%d+%d]: %s\n", ErrorStyle.Render("BAD "), c.Part, c.Offset, c.Length, msg)
	}
	printf(out, "%s\n", fmt.Sprintf("%d chunk blocks checked, %d failed", len(ar.Chunks), bad))
	return !ar.OK()
}
