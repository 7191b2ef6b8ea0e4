package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	vpk "github.com/javi11/govpk"
	"github.com/javi11/govpk/internal/config"
)

// app holds state shared by all subcommands of one invocation.
type app struct {
	cfgFile  string
	logLevel string
	strict   bool
	workers  int

	cfg     config.Config
	cfgPath string
	logger  *log.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "vpk",
		Short: "Inspect, verify, extract and build Valve VPK archives",
		Long: TitleStyle.Render("vpk") + SubtitleStyle.Render(" - Valve pak archive tool") + `

Works on single-file addons (addon.vpk) and multi-part archives
(pak01_dir.vpk with pak01_000.vpk, pak01_001.vpk, ...).

` + SubtitleStyle.Render("Examples:") + `
  vpk list pak01_dir.vpk --ext vmt
  vpk extract addon.vpk -o out/
  vpk verify pak01_dir.vpk --md5
  vpk scan ~/left4dead2/addons
  vpk export a.vpk b.vpk -o ~/Downloads`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/govpk/config.toml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.strict, "strict", false, "treat checksum mismatches as errors")
	pf.IntVar(&a.workers, "workers", 0, "entries processed concurrently")

	root.AddCommand(
		newListCommand(a),
		newExtractCommand(a),
		newVerifyCommand(a),
		newInfoCommand(a),
		newPackCommand(a),
		newScanCommand(a),
		newExportCommand(a),
		newDeleteCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, path, err := config.Load(a.cfgFile)
	if err != nil {
		return usageError(err)
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("strict") {
		cfg.Strict = a.strict
	}
	if flags.Changed("workers") {
		cfg.Workers = a.workers
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	level, _ := log.ParseLevel(cfg.Log.Level)
	a.cfg, a.cfgPath = cfg, path
	a.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Prefix: "vpk", Level: level})
	if path != "" {
		a.logger.Debug("loaded config", "path", path)
	}
	return nil
}

func (a *app) open(path string) (*vpk.Archive, error) {
	arc, err := vpk.Open(path, vpk.WithLogger(a.logger))
	if err != nil {
		return nil, classify(err)
	}
	return arc, nil
}

func (a *app) extractOptions() vpk.ExtractOptions {
	return vpk.ExtractOptions{Strict: a.cfg.Strict, Workers: a.cfg.Workers}
}

// argsUsage wraps a cobra positional validator so violations exit with the
// usage code.
func argsUsage(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func printf(w io.Writer, format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }
