package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/javi11/govpk/internal/bundle"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		outDir      string
		compression string
		level       int
	)
	cmd := &cobra.Command{
		Use:   "export <vpk...>",
		Short: "Bundle addons with their parts and thumbnails into one compressed tar",
		Args:  argsUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := bundle.Options{Level: a.cfg.Export.Level, Logger: a.logger}
			name := a.cfg.Export.Compression
			if cmd.Flags().Changed("compression") {
				name = compression
			}
			if cmd.Flags().Changed("level") {
				opts.Level = level
			}
			c, err := bundle.ParseCompression(name)
			if err != nil {
				return usageError(err)
			}
			opts.Compression = c
			if !cmd.Flags().Changed("output") {
				outDir = a.cfg.OutputDir
			}
			items, err := a.items(args)
			if err != nil {
				return classify(err)
			}
			res, err := bundle.Export(cmd.Context(), items, outDir, opts)
			if err != nil {
				return classify(err)
			}
			printf(cmd.OutOrStdout(), "%s %s (%s, %d files) in %s\n", SuccessStyle.Render("created"),
				PathStyle.Render(res.Path), humanSize(res.Size), len(res.Files), res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&compression, "compression", "", "zstd, lz4 or none (default from config)")
	cmd.Flags().IntVar(&level, "level", 0, "compression level (default from config)")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <vpk...>",
		Short: "Delete addons with their parts, thumbnails and cache records",
		Args:  argsUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.items(args)
			if err != nil {
				return classify(err)
			}
			out := cmd.OutOrStdout()
			if !yes {
				for _, it := range items {
					printf(out, "would delete %s\n", PathStyle.Render(it.File.Path))
				}
				printf(out, "%s\n", WarningStyle.Render("re-run with --yes to delete"))
				return nil
			}
			n, delErr := bundle.Delete(items, a.logger)
			if cache, err := a.cache(); err == nil {
				for _, it := range items {
					if err := cache.Remove(it.File.Path); err != nil {
						a.logger.Warn("remove cache record", "path", it.File.Path, "err", err)
					}
				}
			}
			printf(out, "%s %d file(s)\n", SuccessStyle.Render("deleted"), n)
			if delErr != nil {
				return classify(errors.Join(errors.New("some files could not be deleted"), delErr))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without a dry run")
	return cmd
}
