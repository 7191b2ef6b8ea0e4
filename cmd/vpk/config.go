package main

import (
	"github.com/spf13/cobra"

	"github.com/javi11/govpk/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		Long: `Inspect configuration.

Settings come from built in defaults, then the config file
($XDG_CONFIG_HOME/govpk/config.toml or --config), then GOVPK_* environment
variables (GOVPK_WORKERS, GOVPK_LOG_LEVEL, GOVPK_EXPORT_COMPRESSION, ...),
then command line flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  argsUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			src := "defaults"
			if a.cfgPath != "" {
				src = a.cfgPath
			}
			printf(out, "%s\n", SubtitleStyle.Render("# source: "+src))
			b, err := config.Render(a.cfg)
			if err != nil {
				return classify(err)
			}
			_, err = out.Write(b)
			return err
		},
	})
	return cfgCmd
}
