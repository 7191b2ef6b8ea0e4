package main

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
)

func newPackCommand(a *app) *cobra.Command {
	var (
		maxPart int64
		preload int
		version uint32
	)
	cmd := &cobra.Command{
		Use:   "pack <srcdir> <out_dir.vpk>",
		Short: "Build an archive from a directory tree",
		Long: `Build an archive from a directory tree.

With --max-part-size 0 (the default) all data is stored in the output file.
Otherwise chunk data is split into numbered parts next to it, each at
most --max-part-size bytes unless a single file is larger.`,
		Args: argsUsage(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[0], args[1]
			w, err := vpk.NewWriter(dst, vpk.WriterOptions{
				Version:     version,
				MaxPartSize: maxPart,
				PreloadSize: preload,
				Logger:      a.logger,
			})
			if err != nil {
				return usageError(err)
			}
			absDst, _ := filepath.Abs(dst)
			err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() || !d.Type().IsRegular() {
					return nil
				}
				if abs, _ := filepath.Abs(p); abs == absDst || vpk.IsPartFile(abs) && filepath.Dir(abs) == filepath.Dir(absDst) {
					return nil
				}
				rel, err := filepath.Rel(src, p)
				if err != nil {
					return err
				}
				return w.AddFile(filepath.ToSlash(rel), p)
			})
			if err != nil {
				return classify(fmt.Errorf("collect %s: %w", src, err))
			}
			n := w.Len()
			if err := w.Close(); err != nil {
				return classify(err)
			}
			out := cmd.OutOrStdout()
			for _, p := range w.Written() {
				printf(out, "wrote %s\n", PathStyle.Render(p))
			}
			printf(out, "%s %d entries\n", SuccessStyle.Render("packed"), n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxPart, "max-part-size", 0, "maximum chunk bytes per numbered part (0 keeps everything in one file)")
	cmd.Flags().IntVar(&preload, "preload", 0, "leading bytes of each file stored in the directory tree")
	cmd.Flags().Uint32Var(&version, "version", vpk.Version2, "archive format version (1 or 2)")
	return cmd
}
